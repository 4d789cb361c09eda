package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"stylemeapi/models"
	"stylemeapi/services"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

const (
	TypeLookGeneration     = "generate:looks"
	TypeItemClassification = "generate:classify_item"
	TypeStaleSweep         = "maintenance:stale_generations"
)

type LookGenerationPayload struct {
	UserID       uint `json:"user_id"`
	GenerationID uint `json:"generation_id"`
}

type ItemClassificationPayload struct {
	ItemID uint `json:"item_id"`
}

// NewLookGenerationTask enqueues a background look generation request.
func NewLookGenerationTask(userID uint, generationID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(LookGenerationPayload{UserID: userID, GenerationID: generationID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeLookGeneration, payload), nil
}

func NewItemClassificationTask(itemID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(ItemClassificationPayload{ItemID: itemID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeItemClassification, payload), nil
}

func NewStaleSweepTask() (*asynq.Task, error) {
	return asynq.NewTask(TypeStaleSweep, nil), nil
}

func presignItemURL(awsService services.AWSServiceProvider, key *string) string {
	if key == nil || *key == "" {
		return ""
	}
	bucketName := os.Getenv("R2_BUCKET_NAME")
	url, err := awsService.PresignReadLink(context.TODO(), bucketName, *key)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Queue] could not presign %s: %w", *key, err))
		return ""
	}
	return url
}

// rebuildPool reconstructs the candidate pool a generation request was made
// with: the explicit selection when one was stored, otherwise the user's
// whole wardrobe, otherwise the store catalog.
func rebuildPool(db *gorm.DB, awsService services.AWSServiceProvider, userID uint, generation models.LookGeneration) ([]models.CandidateItem, error) {
	wardrobeIDs, productIDs, err := generation.Selection()
	if err != nil {
		return nil, err
	}

	var selected []models.CandidateItem
	if len(wardrobeIDs) > 0 {
		var items []models.WardrobeItem
		if err := db.Where("owner_id = ? and id in ?", userID, wardrobeIDs).Find(&items).Error; err != nil {
			return nil, err
		}
		for _, item := range items {
			selected = append(selected, models.CandidateFromWardrobe(item, presignItemURL(awsService, item.ImageURL)))
		}
	}
	if len(productIDs) > 0 {
		var products []models.StoreProduct
		if err := db.Where("id in ?", productIDs).Find(&products).Error; err != nil {
			return nil, err
		}
		for _, product := range products {
			selected = append(selected, models.CandidateFromProduct(product, presignItemURL(awsService, product.ImageURL)))
		}
	}

	var wardrobe []models.WardrobeItem
	var store []models.StoreProduct
	if len(selected) == 0 {
		if err := db.Where("owner_id = ?", userID).Find(&wardrobe).Error; err != nil {
			return nil, err
		}
		if len(wardrobe) == 0 {
			if err := db.Find(&store).Error; err != nil {
				return nil, err
			}
		}
	}
	resolveURL := func(key string) string { return presignItemURL(awsService, &key) }
	return services.BuildCandidatePool(selected, wardrobe, store, resolveURL), nil
}

func saveGenerationFail(db *gorm.DB, generation models.LookGeneration, message string, kind services.ErrorKind, shouldRetry bool) error {
	generation.GenerationRetryTimes = generation.GenerationRetryTimes + 1
	generation.GenerationErrorMessage = services.StrPointer(message)
	generation.ErrorKind = services.StrPointer(string(kind))
	if !shouldRetry || generation.GenerationRetryTimes >= 3 {
		generation.Status = "failed"
	}
	tx := db.Save(&generation)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Looks: %v] Error on saving generation for failed status", generation.ID))
		return tx.Error
	}
	return nil
}

// HandleLookGenerationTask runs one queued generation request end to end:
// rebuild the candidate pool, run the composer and persist the outcome.
func HandleLookGenerationTask(ctx context.Context, t *asynq.Task, db *gorm.DB, engine services.StylistEngine, awsService services.AWSServiceProvider, fbApp *firebase.App) error {
	var payload LookGenerationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Looks: %v] Start processing\n", payload.GenerationID)

	var generation models.LookGeneration
	res := db.First(&generation, payload.GenerationID)
	if res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Queue] Error on retrieving generation request %v", payload.GenerationID))
		return res.Error
	}
	if generation.Status == "completed" {
		fmt.Printf("[Looks: %v] Already completed\n", payload.GenerationID)
		return nil
	}

	var user models.UserAccount
	if err := db.Preload("Profile").First(&user, payload.UserID).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("[Looks: %v] Error on retrieving user %v", payload.GenerationID, payload.UserID))
		return err
	}
	if user.Profile == nil {
		saveGenerationFail(db, generation, "Set up your styling profile first", services.ErrContractViolation, false)
		return nil
	}

	pool, err := rebuildPool(db, awsService, user.ID, generation)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Looks: %v] Error on rebuilding candidate pool: %w", payload.GenerationID, err))
		saveGenerationFail(db, generation, "Could not load your items, please try again", services.ErrServiceUnavailable, true)
		return err
	}
	if len(pool) == 0 {
		saveGenerationFail(db, generation, "Add some items to your wardrobe first", services.ErrContractViolation, false)
		return nil
	}

	composer := services.NewLookComposer(engine)
	started := time.Now()
	looks, err := composer.GenerateLooks(ctx, *user.Profile, generation.OccasionPrompt, pool)
	duration := time.Since(started).Seconds()
	generation.Duration = &duration
	if err != nil {
		kind := services.ErrorKindOf(err)
		message := services.UserMessageOf(err)
		fmt.Printf("[Looks: %v] Generation failed (%s): %v\n", payload.GenerationID, kind, err)
		sentry.CaptureException(fmt.Errorf("[Looks: %v] Generation failed: %w", payload.GenerationID, err))
		// declined and malformed requests never recover on retry
		retryable := kind == services.ErrQuotaExceeded || kind == services.ErrServiceUnavailable || kind == services.ErrContractViolation
		saveGenerationFail(db, generation, message, kind, retryable)
		if retryable {
			return err
		}
		return nil
	}

	generation.Status = "completed"
	generation.GenerationErrorMessage = nil
	generation.ErrorKind = nil
	generation.LLMModel = services.StrPointer(services.Flash25.String())
	if err := generation.SetResult(looks); err != nil {
		sentry.CaptureException(fmt.Errorf("[Looks: %v] Error on serializing result: %w", payload.GenerationID, err))
		return err
	}
	tx := db.Save(&generation)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Queue] Error on saving generation %v", payload.GenerationID))
		return tx.Error
	}
	fmt.Printf("[Looks: %v] Generated %v looks in %.1fs\n", payload.GenerationID, len(looks), duration)

	if fbApp != nil {
		services.SendNotification(fbApp, db, user.ID, "Your looks are ready",
			fmt.Sprintf("We styled %d looks for \"%s\"", len(looks), generation.OccasionPrompt),
			map[string]string{"request_id": fmt.Sprintf("%d", generation.ID), "type": "looks_generated"})
	}
	return nil
}

func saveItemProcessingFail(db *gorm.DB, item models.WardrobeItem, message string, shouldRetry bool) error {
	item.ProcessRetryTimes = item.ProcessRetryTimes + 1
	item.ProcessErrorMessage = services.StrPointer(message)
	if !shouldRetry || item.ProcessRetryTimes >= 3 {
		item.ProcessingStatus = "failed"
	}
	tx := db.Save(&item)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on saving item for failed status", item.ID))
		return tx.Error
	}
	return nil
}

// HandleItemClassificationTask names and categorizes a freshly uploaded
// wardrobe photo. Fields the user already filled stay untouched.
func HandleItemClassificationTask(ctx context.Context, t *asynq.Task, db *gorm.DB, engine services.StylistEngine, awsService services.AWSServiceProvider) error {
	var payload ItemClassificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Item: %v] Start classification\n", payload.ItemID)

	var item models.WardrobeItem
	res := db.First(&item, payload.ItemID)
	if res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Queue] Error on retrieving wardrobe item %v", payload.ItemID))
		return res.Error
	}
	if item.ProcessingStatus == "completed" {
		fmt.Printf("[Item: %v] Already classified\n", payload.ItemID)
		return nil
	}
	if item.ImageURL == nil || *item.ImageURL == "" {
		saveItemProcessingFail(db, item, "Item has no photo to classify", false)
		return nil
	}

	var image services.EncodedImage
	if engine.Offline() {
		// mock engine never inspects pixels, skip the download
		image = services.EncodedImage{MimeType: "image/png"}
	} else {
		imageURL := presignItemURL(awsService, item.ImageURL)
		if imageURL == "" {
			saveItemProcessingFail(db, item, "Could not read the item photo, please try again", true)
			return fmt.Errorf("[Item: %v] could not presign item image %s", payload.ItemID, *item.ImageURL)
		}
		var err error
		image, err = services.FetchImageAsEncoded(imageURL)
		if err != nil {
			sentry.CaptureException(fmt.Errorf("[Item: %v] Error on downloading item image: %w", payload.ItemID, err))
			saveItemProcessingFail(db, item, "Could not read the item photo, please try again", true)
			return err
		}
	}

	classification, err := engine.ClassifyItem(ctx, image)
	if err != nil {
		kind := services.ErrorKindOf(err)
		fmt.Printf("[Item: %v] Classification failed (%s): %v\n", payload.ItemID, kind, err)
		sentry.CaptureException(fmt.Errorf("[Item: %v] Classification failed: %w", payload.ItemID, err))
		saveItemProcessingFail(db, item, services.UserMessageOf(err), kind != services.ErrGenerationDeclined)
		if kind == services.ErrGenerationDeclined {
			return nil
		}
		return err
	}

	if item.Name == "" {
		item.Name = classification.Name
	}
	if item.Category == "" && models.ValidClothingCategory(classification.Category) {
		item.Category = classification.Category
	}
	item.ProcessingStatus = "completed"
	item.ProcessErrorMessage = nil
	tx := db.Save(&item)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Queue] Error on saving wardrobe item %v", payload.ItemID))
		return tx.Error
	}
	fmt.Printf("[Item: %v] Classified as %q / %q\n", payload.ItemID, item.Name, item.Category)
	return nil
}

// staleGenerationCutoff is how long a pending request may sit before the
// sweeper declares it abandoned.
const staleGenerationCutoff = 15 * time.Minute

// HandleStaleSweepTask fails pending generation requests whose worker died
// mid-flight, so clients polling the request do not wait forever.
func HandleStaleSweepTask(ctx context.Context, t *asynq.Task, db *gorm.DB) error {
	cutoff := time.Now().Add(-staleGenerationCutoff)
	var stale []models.LookGeneration
	result := db.Where("status = ? AND updated_at < ?", "pending", cutoff).Find(&stale)
	if result.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Sweep] Error fetching stale generations: %w", result.Error))
		return result.Error
	}
	if len(stale) == 0 {
		return nil
	}
	fmt.Printf("[Sweep] Failing %d stale generation requests\n", len(stale))
	for _, generation := range stale {
		generation.Status = "failed"
		generation.GenerationErrorMessage = services.StrPointer("Generation timed out, please try again")
		generation.ErrorKind = services.StrPointer(string(services.ErrServiceUnavailable))
		if err := db.Save(&generation).Error; err != nil {
			sentry.CaptureException(fmt.Errorf("[Sweep] Error on failing generation %v: %w", generation.ID, err))
		}
	}
	return nil
}
