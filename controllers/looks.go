package controllers

import (
	"fmt"
	"net/http"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"stylemeapi/models"
	"stylemeapi/services"
	"stylemeapi/tasks"
)

type GenerateLooksRequest struct {
	Occasion        string `json:"occasion" validate:"required,max=500"`
	WardrobeItemIDs []uint `json:"wardrobe_item_ids"`
	StoreProductIDs []uint `json:"store_product_ids"`
}

type SaveLookRequest struct {
	LookID      string                 `json:"look_id" validate:"required,max=100"`
	Name        string                 `json:"name" validate:"required,max=200"`
	Description *string                `json:"description" validate:"omitempty,max=2000"`
	ImageURL    string                 `json:"image_url" validate:"required"`
	Score       float64                `json:"score" validate:"gte=0,lte=10"`
	Items       []models.CandidateItem `json:"items"`
}

type LooksController struct {
	AWSService  services.AWSServiceProvider
	FirebaseApp *firebase.App
	URLCache    services.URLCacheServiceProvider
	Composer    *services.LookComposer
}

// stylistErrorResponse maps classified pipeline errors onto HTTP statuses.
// Declined content is the caller's problem, quota and availability are ours,
// broken model responses are a bad gateway.
func stylistErrorResponse(c echo.Context, err error) error {
	message := services.UserMessageOf(err)
	kind := services.ErrorKindOf(err)
	status := http.StatusServiceUnavailable
	switch kind {
	case services.ErrGenerationDeclined:
		status = http.StatusUnprocessableEntity
	case services.ErrQuotaExceeded:
		status = http.StatusTooManyRequests
	case services.ErrServiceUnavailable:
		status = http.StatusServiceUnavailable
	case services.ErrContractViolation, services.ErrNoImageReturned, services.ErrFetchFailure:
		status = http.StatusBadGateway
	case services.ErrMalformedDataURL:
		status = http.StatusBadRequest
	}
	return c.JSON(status, echo.Map{
		"message": message,
		"kind":    string(kind),
	})
}

func (controller *LooksController) LooksRoutes(g *echo.Group) {
	g.POST("/generate", controller.GenerateLooks)
	g.POST("/requests", controller.CreateGenerationRequest)
	g.GET("/requests", controller.ListGenerationRequests)
	g.GET("/requests/:requestId", controller.GetGenerationRequest)
	g.POST("/saved", controller.SaveLook)
	g.GET("/saved", controller.ListSavedLooks)
	g.DELETE("/saved/:lookId", controller.DeleteSavedLook)
}

// buildPool resolves the request's explicit selection against the user's own
// wardrobe and the store catalog, then applies the fallback chain.
func (controller *LooksController) buildPool(c echo.Context, db *gorm.DB, user models.UserAccount, req GenerateLooksRequest) ([]models.CandidateItem, error) {
	resolveURL := func(key string) string {
		url, err := controller.URLCache.GetReadURL(c.Request().Context(), key)
		if err != nil {
			fmt.Println("[Looks] could not presign", key, err)
			return ""
		}
		return url
	}

	var selected []models.CandidateItem
	if len(req.WardrobeItemIDs) > 0 {
		var items []models.WardrobeItem
		if err := db.Where("owner_id = ? and id in ?", user.ID, req.WardrobeItemIDs).Find(&items).Error; err != nil {
			return nil, err
		}
		for _, item := range items {
			var imageURL string
			if item.ImageURL != nil {
				imageURL = resolveURL(*item.ImageURL)
			}
			selected = append(selected, models.CandidateFromWardrobe(item, imageURL))
		}
	}
	if len(req.StoreProductIDs) > 0 {
		var products []models.StoreProduct
		if err := db.Where("id in ?", req.StoreProductIDs).Find(&products).Error; err != nil {
			return nil, err
		}
		for _, product := range products {
			var imageURL string
			if product.ImageURL != nil {
				imageURL = resolveURL(*product.ImageURL)
			}
			selected = append(selected, models.CandidateFromProduct(product, imageURL))
		}
	}

	var wardrobe []models.WardrobeItem
	var store []models.StoreProduct
	if len(selected) == 0 {
		if err := db.Where("owner_id = ?", user.ID).Find(&wardrobe).Error; err != nil {
			return nil, err
		}
		if len(wardrobe) == 0 {
			if err := db.Find(&store).Error; err != nil {
				return nil, err
			}
		}
	}
	return services.BuildCandidatePool(selected, wardrobe, store, resolveURL), nil
}

func (controller *LooksController) GenerateLooks(c echo.Context) error {
	var req GenerateLooksRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	if user.Profile == nil {
		return c.JSON(http.StatusPreconditionFailed, echo.Map{"message": "Set up your styling profile first"})
	}
	profile := *user.Profile

	pool, err := controller.buildPool(c, db, user, req)
	if err != nil {
		sentry.CaptureException(err)
		return echo.ErrInternalServerError
	}
	if len(pool) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Add some items to your wardrobe first"})
	}

	generation := models.LookGeneration{
		UserAccountID:          user.ID,
		OccasionPrompt:         req.Occasion,
		GeneratedWithAvatarURL: profile.BaseImageURL,
		Status:                 "pending",
	}
	if err := generation.SetSelection(req.WardrobeItemIDs, req.StoreProductIDs); err != nil {
		return echo.ErrInternalServerError
	}
	if err := db.Create(&generation).Error; err != nil {
		sentry.CaptureException(err)
		return echo.ErrInternalServerError
	}

	started := time.Now()
	looks, err := controller.Composer.GenerateLooks(c.Request().Context(), profile, req.Occasion, pool)
	duration := time.Since(started).Seconds()
	if err != nil {
		kind := string(services.ErrorKindOf(err))
		message := services.UserMessageOf(err)
		generation.Status = "failed"
		generation.GenerationErrorMessage = &message
		generation.ErrorKind = &kind
		generation.Duration = &duration
		db.Save(&generation)
		fmt.Printf("[Looks: %v] generation failed (%s): %v\n", generation.ID, kind, err)
		sentry.CaptureException(fmt.Errorf("[Looks: %v] generation failed: %w", generation.ID, err))
		return stylistErrorResponse(c, err)
	}

	generation.Status = "completed"
	generation.Duration = &duration
	generation.LLMModel = StrPointer(services.Flash25.String())
	if err := generation.SetResult(looks); err != nil {
		sentry.CaptureException(err)
		return echo.ErrInternalServerError
	}
	db.Save(&generation)
	fmt.Printf("[Looks: %v] generated %v looks in %.1fs\n", generation.ID, len(looks), duration)

	return c.JSON(http.StatusOK, echo.Map{
		"request_id": generation.ID,
		"looks":      looks,
		"offline":    controller.Composer.Engine.Offline(),
	})
}

func (controller *LooksController) CreateGenerationRequest(c echo.Context) error {
	var req GenerateLooksRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	asynqClient, ok := c.Get("__asynqclient").(*asynq.Client)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Service is not available, please try again a bit later"})
	}

	if user.Profile == nil {
		return c.JSON(http.StatusPreconditionFailed, echo.Map{"message": "Set up your styling profile first"})
	}

	generation := models.LookGeneration{
		UserAccountID:          user.ID,
		OccasionPrompt:         req.Occasion,
		GeneratedWithAvatarURL: user.Profile.BaseImageURL,
		Status:                 "pending",
	}
	if err := generation.SetSelection(req.WardrobeItemIDs, req.StoreProductIDs); err != nil {
		return echo.ErrInternalServerError
	}
	if err := db.Create(&generation).Error; err != nil {
		sentry.CaptureException(err)
		return echo.ErrInternalServerError
	}

	task, err := tasks.NewLookGenerationTask(user.ID, generation.ID)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not start generation, please try again"})
	}
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("generate"))
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not start generation, please try again"})
	}
	fmt.Println("[Queue] Look generation task submitted, Request ID: ", generation.ID, " Task ID: ", info.ID)

	return c.JSON(http.StatusCreated, echo.Map{
		"request_id": generation.ID,
		"status":     generation.Status,
	})
}

func (controller *LooksController) ListGenerationRequests(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	var generations []models.LookGeneration
	if err := db.Where("user_account_id = ?", user.ID).Order("created_at desc").Limit(50).Find(&generations).Error; err != nil {
		return echo.ErrInternalServerError
	}
	type requestOut struct {
		ID        uint     `json:"id"`
		Occasion  string   `json:"occasion"`
		Status    string   `json:"status"`
		ErrorKind *string  `json:"error_kind,omitempty"`
		Duration  *float64 `json:"duration,omitempty"`
		CreatedAt string   `json:"created_at"`
	}
	out := make([]requestOut, 0, len(generations))
	for _, g := range generations {
		out = append(out, requestOut{
			ID:        g.ID,
			Occasion:  g.OccasionPrompt,
			Status:    g.Status,
			ErrorKind: g.ErrorKind,
			Duration:  g.Duration,
			CreatedAt: g.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"requests": out})
}

func (controller *LooksController) GetGenerationRequest(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	var requestId uint
	if err := echo.PathParamsBinder(c).Uint("requestId", &requestId).BindError(); err != nil {
		return echo.ErrBadRequest
	}
	var generation models.LookGeneration
	r := db.Where("id = ? and user_account_id = ?", requestId, user.ID).Limit(1).Find(&generation)
	if r.RowsAffected == 0 {
		return echo.ErrNotFound
	}

	response := echo.Map{
		"request_id": generation.ID,
		"occasion":   generation.OccasionPrompt,
		"status":     generation.Status,
		"created_at": generation.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if generation.Status == "completed" {
		looks, err := generation.Result()
		if err != nil {
			sentry.CaptureException(fmt.Errorf("[Looks: %v] corrupt result payload: %w", generation.ID, err))
			return echo.ErrInternalServerError
		}
		response["looks"] = looks
	}
	if generation.Status == "failed" {
		response["message"] = generation.GenerationErrorMessage
		response["kind"] = generation.ErrorKind
	}
	return c.JSON(http.StatusOK, response)
}

func (controller *LooksController) SaveLook(c echo.Context) error {
	var req SaveLookRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	saved := models.SavedLook{
		OwnerID:     user.ID,
		LookID:      req.LookID,
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Score:       req.Score,
	}
	if err := saved.SetItems(models.TagProvenance(req.Items)); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid items payload"})
	}
	if err := db.Create(&saved).Error; err != nil {
		sentry.CaptureException(err)
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":      saved.ID,
		"look_id": saved.LookID,
	})
}

func (controller *LooksController) ListSavedLooks(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	var savedLooks []models.SavedLook
	if err := db.Where("owner_id = ?", user.ID).Order("created_at desc").Find(&savedLooks).Error; err != nil {
		return echo.ErrInternalServerError
	}
	type savedOut struct {
		ID          uint                   `json:"id"`
		LookID      string                 `json:"look_id"`
		Name        string                 `json:"name"`
		Description *string                `json:"description"`
		ImageURL    string                 `json:"image_url"`
		Score       float64                `json:"score"`
		Items       []models.CandidateItem `json:"items"`
		CreatedAt   string                 `json:"created_at"`
	}
	out := make([]savedOut, 0, len(savedLooks))
	for _, saved := range savedLooks {
		items, err := saved.Items()
		if err != nil {
			sentry.CaptureException(fmt.Errorf("corrupt saved look %v: %w", saved.ID, err))
			continue
		}
		out = append(out, savedOut{
			ID:          saved.ID,
			LookID:      saved.LookID,
			Name:        saved.Name,
			Description: saved.Description,
			ImageURL:    saved.ImageURL,
			Score:       saved.Score,
			Items:       items,
			CreatedAt:   saved.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"looks": out})
}

func (controller *LooksController) DeleteSavedLook(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	var lookId uint
	if err := echo.PathParamsBinder(c).Uint("lookId", &lookId).BindError(); err != nil {
		return echo.ErrBadRequest
	}
	result := db.Where("id = ? and owner_id = ?", lookId, user.ID).Delete(&models.SavedLook{})
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "deleted",
		"deleted": result.RowsAffected > 0,
	})
}
