package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"stylemeapi/models"
	"stylemeapi/services"
	"stylemeapi/tasks"
)

type CreateWardrobeItemIn struct {
	Name            string  `json:"name" validate:"omitempty,max=100"`
	FileName        *string `json:"file_name" validate:"required,max=200"`
	Category        string  `json:"category" validate:"omitempty,max=50"`
	CreationYear    int     `json:"creation_year" validate:"omitempty,gte=1900,lte=2100"`
	ManualTechnique string  `json:"manual_technique" validate:"omitempty,max=50"`
	FiberOrigin     string  `json:"fiber_origin" validate:"omitempty,max=50"`
	ItemStatus      string  `json:"item_status" validate:"omitempty,oneof=legacy in_progress ready"`
	AutoClassify    *bool   `json:"auto_classify"`
}

type UpdateWardrobeItemIn struct {
	Name       *string `json:"name" validate:"omitempty,max=100"`
	Category   *string `json:"category" validate:"omitempty,max=50"`
	IsFavorite *bool   `json:"is_favorite"`
}

type WardrobeItemResponse struct {
	ID               uint    `json:"id"`
	Name             string  `json:"name"`
	Category         string  `json:"category"`
	Uri              *string `json:"uri,omitempty"`
	IsFavorite       bool    `json:"is_favorite"`
	CreationYear     int     `json:"creation_year,omitempty"`
	ManualTechnique  string  `json:"manual_technique,omitempty"`
	FiberOrigin      string  `json:"fiber_origin,omitempty"`
	ItemStatus       string  `json:"item_status,omitempty"`
	ProcessingStatus string  `json:"processing_status"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

type WardrobeItemCreatedResponse struct {
	Item          WardrobeItemResponse `json:"item"`
	FileUploadUrl string               `json:"file_upload_url"`
}

type WardrobeController struct {
	AWSService  services.AWSServiceProvider
	FirebaseApp *firebase.App
	URLCache    services.URLCacheServiceProvider
}

func (controller *WardrobeController) WardrobeRoutes(g *echo.Group) {
	g.POST("/create", controller.CreateItem)
	g.GET("/list", controller.ListItems)
	g.PUT("/:itemId", controller.UpdateItem)
	g.DELETE("/:itemId", controller.DeleteItem)
	g.POST("/:itemId/classify", controller.ClassifyItem)
}

func (controller *WardrobeController) CreateItem(c echo.Context) error {
	var req CreateWardrobeItemIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if req.Category != "" && !models.ValidClothingCategory(req.Category) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown category"})
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	asynqClient, ok := c.Get("__asynqclient").(*asynq.Client)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Service is not available, please try again a bit later"})
	}

	if req.FileName == nil || *req.FileName == "" {
		sentry.CaptureException(fmt.Errorf("image was not provided when creating wardrobe item %s, user %v", req.Name, user.ID))
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Sorry, it seems image was not provided, please try again"})
	}
	if !services.ValidImageExtension(*req.FileName) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unsupported image format"})
	}

	item := models.WardrobeItem{
		Name:             req.Name,
		Category:         req.Category,
		OwnerID:          user.ID,
		CreationYear:     req.CreationYear,
		ManualTechnique:  req.ManualTechnique,
		FiberOrigin:      req.FiberOrigin,
		ItemStatus:       req.ItemStatus,
		ProcessingStatus: "idle",
	}
	var bucketName = services.GetEnv("R2_BUCKET_NAME", "")
	safeFileName := fmt.Sprintf("wardrobe/%v/%s", user.ID, *req.FileName)
	uploadUrl, presignErr := controller.AWSService.PresignUploadLink(context.Background(), bucketName, safeFileName)
	if presignErr != nil {
		log.Printf("Unable to presign upload for %s!, %s", item.Name, presignErr)
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"message": "Error while creating item with attachment",
		})
	}
	item.ImageURL = &safeFileName
	if err := db.Create(&item).Error; err != nil {
		sentry.CaptureException(err)
		return err
	}

	// No name or category means the classifier fills them in.
	needsClassification := req.Name == "" || req.Category == ""
	if needsClassification || (req.AutoClassify != nil && *req.AutoClassify) {
		item.ProcessingStatus = "pending"
		if err := db.Save(&item).Error; err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Failed to update item status, please try again"})
		}
		task, err := tasks.NewItemClassificationTask(item.ID)
		if err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not process item, please try again"})
		}
		info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("generate"))
		if err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not process item, please try again"})
		}
		fmt.Println("[Queue] Classify item task submitted, Item ID: ", item.ID, " Task ID: ", info.ID)
	}

	response := WardrobeItemCreatedResponse{
		Item: WardrobeItemResponse{
			ID:               item.ID,
			Name:             item.Name,
			Category:         item.Category,
			IsFavorite:       item.IsFavorite,
			CreationYear:     item.CreationYear,
			ManualTechnique:  item.ManualTechnique,
			FiberOrigin:      item.FiberOrigin,
			ItemStatus:       item.ItemStatus,
			ProcessingStatus: item.ProcessingStatus,
			CreatedAt:        item.CreatedAt.Format("2006-01-02T15:04:05Z"),
			UpdatedAt:        item.UpdatedAt.Format("2006-01-02T15:04:05Z"),
		},
		FileUploadUrl: uploadUrl,
	}
	return c.JSON(http.StatusCreated, response)
}

// populatePresignedItemImages enriches raw wardrobe rows with presigned URLs
// concurrently, with a direct-presign failsafe for when the cache layer
// itself fails.
func (controller *WardrobeController) populatePresignedItemImages(ctx context.Context, items []models.WardrobeItem) []WardrobeItemResponse {
	if len(items) == 0 {
		return []WardrobeItemResponse{}
	}

	var wg sync.WaitGroup
	processedResponses := make([]WardrobeItemResponse, len(items))
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")

	for i, wardrobeItem := range items {
		wg.Add(1)
		go func(index int, item models.WardrobeItem) {
			defer wg.Done()

			var imageUrl string
			if item.ImageURL != nil && *item.ImageURL != "" {
				objectKey := *item.ImageURL
				url, err := controller.URLCache.GetReadURL(ctx, objectKey)
				if err == nil {
					imageUrl = url
				} else {
					log.Printf("CACHE WARNING: Cache system failed for key '%s': %v. Triggering manual R2 fallback.", objectKey, err)
					sentry.WithScope(func(scope *sentry.Scope) {
						scope.SetTag("failure_type", "cache_system")
						scope.SetExtra("objectKey", objectKey)
						sentry.CaptureException(err)
					})
					fallbackUrl, fallbackErr := controller.AWSService.PresignReadLink(ctx, bucketName, objectKey)
					if fallbackErr != nil {
						log.Printf("CRITICAL: Manual R2 fallback also failed for key '%s': %v", objectKey, fallbackErr)
						sentry.CaptureException(fallbackErr)
					} else {
						imageUrl = fallbackUrl
					}
				}
			}
			processedResponses[index] = WardrobeItemResponse{
				ID:               item.ID,
				Name:             item.Name,
				Category:         item.Category,
				Uri:              &imageUrl,
				IsFavorite:       item.IsFavorite,
				CreationYear:     item.CreationYear,
				ManualTechnique:  item.ManualTechnique,
				FiberOrigin:      item.FiberOrigin,
				ItemStatus:       item.ItemStatus,
				ProcessingStatus: item.ProcessingStatus,
				CreatedAt:        item.CreatedAt.Format("2006-01-02T15:04:05Z"),
				UpdatedAt:        item.UpdatedAt.Format("2006-01-02T15:04:05Z"),
			}
		}(i, wardrobeItem)
	}

	wg.Wait()
	return processedResponses
}

func (controller *WardrobeController) ListItems(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	var items []models.WardrobeItem
	if err := db.Where("owner_id = ?", user.ID).Order("created_at desc").Find(&items).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch wardrobe"})
	}
	processedResponses := controller.populatePresignedItemImages(c.Request().Context(), items)

	grouped := map[string][]WardrobeItemResponse{}
	for _, resp := range processedResponses {
		key := resp.Category
		if key == "" {
			key = "Uncategorized"
		}
		grouped[key] = append(grouped[key], resp)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":   processedResponses,
		"grouped": grouped,
	})
}

func (controller *WardrobeController) UpdateItem(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	var itemId uint
	if err := echo.PathParamsBinder(c).Uint("itemId", &itemId).BindError(); err != nil {
		return echo.ErrBadRequest
	}
	var req UpdateWardrobeItemIn
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if req.Category != nil && !models.ValidClothingCategory(*req.Category) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown category"})
	}

	var item models.WardrobeItem
	r := db.Where("id = ? and owner_id = ?", itemId, user.ID).Limit(1).Find(&item)
	if r.RowsAffected == 0 {
		return echo.ErrNotFound
	}
	if req.Name != nil {
		item.Name = *req.Name
	}
	if req.Category != nil {
		item.Category = *req.Category
	}
	if req.IsFavorite != nil {
		item.IsFavorite = *req.IsFavorite
	}
	if err := db.Save(&item).Error; err != nil {
		sentry.CaptureException(err)
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, item)
}

func (controller *WardrobeController) DeleteItem(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	var itemId uint
	if err := echo.PathParamsBinder(c).Uint("itemId", &itemId).BindError(); err != nil {
		return echo.ErrBadRequest
	}
	result := db.Where("id = ? and owner_id = ?", itemId, user.ID).Delete(&models.WardrobeItem{})
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "deleted",
		"deleted": result.RowsAffected > 0,
	})
}

func (controller *WardrobeController) ClassifyItem(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	asynqClient, ok := c.Get("__asynqclient").(*asynq.Client)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Service is not available, please try again a bit later"})
	}

	var itemId uint
	if err := echo.PathParamsBinder(c).Uint("itemId", &itemId).BindError(); err != nil {
		return echo.ErrBadRequest
	}
	var item models.WardrobeItem
	r := db.Where("id = ? and owner_id = ?", itemId, user.ID).Limit(1).Find(&item)
	if r.RowsAffected == 0 {
		return echo.ErrNotFound
	}
	if item.ImageURL == nil || *item.ImageURL == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Item has no photo to classify"})
	}

	item.ProcessingStatus = "pending"
	item.ProcessRetryTimes = 0
	item.ProcessErrorMessage = nil
	if err := db.Save(&item).Error; err != nil {
		sentry.CaptureException(err)
		return echo.ErrInternalServerError
	}
	task, err := tasks.NewItemClassificationTask(item.ID)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not process item, please try again"})
	}
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("generate"))
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not process item, please try again"})
	}
	fmt.Println("[Queue] Classify item task submitted, Item ID: ", item.ID, " Task ID: ", info.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"message":           "queued",
		"processing_status": item.ProcessingStatus,
	})
}
