package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"stylemeapi/models"
	"stylemeapi/services"
)

type SetBaseImageRequest struct {
	FileName *string `json:"file_name" validate:"required,max=1000"`
}

type AnalyzeBodyRequest struct {
	// data URL of the photo to analyze; empty means "use my base image"
	Image string `json:"image" validate:"omitempty,max=20000000"`
	Apply bool   `json:"apply"`
}

type ProfileController struct {
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
	Engine     services.StylistEngine
}

// resolveDisplayURL turns a stored reference into something a client can
// render. Data URLs pass through unchanged, object keys get presigned.
func (controller *ProfileController) resolveDisplayURL(ctx context.Context, ref string) string {
	if ref == "" || strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "http") {
		return ref
	}
	url, err := controller.URLCache.GetReadURL(ctx, ref)
	if err != nil {
		log.Printf("Could not presign read URL for key '%s': %v", ref, err)
		sentry.CaptureException(err)
		return ""
	}
	return url
}

func (controller *ProfileController) ProfileRoutes(g *echo.Group) {
	g.GET("/profile", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		if user.Profile == nil {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "No styling profile yet"})
		}
		profile := *user.Profile
		return c.JSON(http.StatusOK, echo.Map{
			"profile":        profile,
			"base_image_url": controller.resolveDisplayURL(c.Request().Context(), profile.BaseImageURL),
			"complete":       profile.Complete(),
		})
	})

	g.PUT("/profile", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		var in models.StyleProfileIn
		if err := c.Bind(&in); err != nil {
			return err
		}
		if err := c.Validate(in); err != nil {
			return err
		}

		var profile models.StyleProfile
		db.Where("user_account_id = ?", user.ID).Limit(1).Find(&profile)
		profile.UserAccountID = user.ID
		profile.Name = in.Name
		if in.BaseImageURL != "" {
			profile.BaseImageURL = in.BaseImageURL
		}
		profile.PersonalStyle = in.PersonalStyle
		profile.BodyType = in.BodyType
		profile.BustCM = in.Bust
		profile.WaistCM = in.Waist
		profile.HipsCM = in.Hips
		profile.HeightCM = in.Height
		if err := db.Save(&profile).Error; err != nil {
			fmt.Println("Error saving profile for user", user.ID, err)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, echo.Map{
			"profile":  profile,
			"complete": profile.Complete(),
		})
	})

	g.POST("/profile/base-image", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		var req SetBaseImageRequest
		if err := c.Bind(&req); err != nil {
			fmt.Println(err)
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		}
		if err := c.Validate(req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		if !services.ValidImageExtension(*req.FileName) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unsupported image format"})
		}

		var bucketName = services.GetEnv("R2_BUCKET_NAME", "")
		safeFileName := fmt.Sprintf("baseimages/%v/%s", user.ID, *req.FileName)
		uploadUrl, presignErr := controller.AWSService.PresignUploadLink(context.Background(), bucketName, safeFileName)
		if presignErr != nil {
			log.Printf("Unable to presign base image upload for %s!, %s", user.Name, presignErr)
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"message": "Error while uploading your photo, please try again",
			})
		}

		var profile models.StyleProfile
		db.Where("user_account_id = ?", user.ID).Limit(1).Find(&profile)
		profile.UserAccountID = user.ID
		profile.BaseImageURL = safeFileName
		if err := db.Save(&profile).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Failed to save your photo"})
		}
		fmt.Printf("[Profile] base image preset for user %v: %s\n", user.ID, safeFileName)
		return c.JSON(http.StatusOK, map[string]string{
			"message":    "Photo is updated successfully",
			"upload_url": uploadUrl,
			"file_name":  *req.FileName,
		})
	})

	g.POST("/analyze", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		var req AnalyzeBodyRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		}

		imageRef := req.Image
		if imageRef == "" {
			if user.Profile == nil || user.Profile.BaseImageURL == "" {
				return c.JSON(http.StatusBadRequest, echo.Map{"message": "Upload a full body photo first"})
			}
			imageRef = controller.resolveDisplayURL(c.Request().Context(), user.Profile.BaseImageURL)
		}
		encoded, err := services.FetchImageAsEncoded(imageRef)
		if err != nil {
			fmt.Println("[Analyze] image fetch failed for user", user.ID, err)
			return stylistErrorResponse(c, err)
		}

		analysis, err := controller.Engine.AnalyzeBody(c.Request().Context(), encoded)
		if err != nil {
			sentry.CaptureException(fmt.Errorf("[Analyze] failed for user %v: %w", user.ID, err))
			return stylistErrorResponse(c, err)
		}

		if req.Apply {
			var profile models.StyleProfile
			db.Where("user_account_id = ?", user.ID).Limit(1).Find(&profile)
			profile.UserAccountID = user.ID
			profile.BodyType = analysis.BodyType
			profile.BustCM = analysis.Measurements.Bust
			profile.WaistCM = analysis.Measurements.Waist
			profile.HipsCM = analysis.Measurements.Hips
			profile.HeightCM = analysis.Measurements.Height
			if err := db.Save(&profile).Error; err != nil {
				fmt.Println("Error applying analysis for user", user.ID, err)
				return echo.ErrInternalServerError
			}
		}
		return c.JSON(http.StatusOK, echo.Map{
			"analysis": analysis,
			"applied":  req.Apply,
			"offline":  controller.Engine.Offline(),
		})
	})
}
