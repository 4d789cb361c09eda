package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"stylemeapi/dbhelper"
	"stylemeapi/models"
	"stylemeapi/services"
	"stylemeapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testEngine() *services.MockStylistEngine {
	engine := services.NewMockStylistEngine()
	engine.LatencyUnit = 0
	return engine
}

func userPk(user *models.UserAccount) string {
	return strconv.FormatUint(uint64(user.ID), 10)
}

func seedWardrobe(t *testing.T, db *gorm.DB, ownerID uint) []models.WardrobeItem {
	items := []models.WardrobeItem{
		{Name: "White Linen Blouse", Category: "Blouses", OwnerID: ownerID, ImageURL: test.NewRefString("wardrobe/1/blouse.jpg"), ProcessingStatus: "idle"},
		{Name: "High Waist Jeans", Category: "Jeans", OwnerID: ownerID, ImageURL: test.NewRefString("wardrobe/1/jeans.jpg"), ProcessingStatus: "idle"},
		{Name: "Suede Loafers", Category: "Shoes", OwnerID: ownerID, ImageURL: test.NewRefString("wardrobe/1/loafers.jpg"), ProcessingStatus: "idle"},
	}
	for i := range items {
		require.NoError(t, db.Create(&items[i]).Error)
	}
	return items
}

func TestGenerateLooksOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUserWithProfile(db)
	seedWardrobe(t, db, user.ID)

	reqBody := GenerateLooksRequest{Occasion: "casual Sunday brunch"}
	req := test.NewJSONAuthRequest("POST", "/looks/generate", userPk(user), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response struct {
		RequestID uint          `json:"request_id"`
		Looks     []models.Look `json:"looks"`
		Offline   bool          `json:"offline"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.True(t, response.Offline)
	require.Len(t, response.Looks, 2)
	for _, look := range response.Looks {
		assert.NotEmpty(t, look.Name)
		assert.NotEmpty(t, look.Description)
		assert.NotEmpty(t, look.ImageURL)
		assert.NotEmpty(t, look.Items)
		assert.GreaterOrEqual(t, look.Score, 0.0)
		assert.LessOrEqual(t, look.Score, 10.0)
	}

	var generation models.LookGeneration
	require.NoError(t, db.First(&generation, response.RequestID).Error)
	assert.Equal(t, "completed", generation.Status)
	assert.NotNil(t, generation.Duration)
	assert.NotNil(t, generation.LLMModel)
}

func TestGenerateLooksWithSelection(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUserWithProfile(db)
	items := seedWardrobe(t, db, user.ID)

	reqBody := GenerateLooksRequest{
		Occasion:        "gallery opening",
		WardrobeItemIDs: []uint{items[0].ID, items[1].ID},
	}
	req := test.NewJSONAuthRequest("POST", "/looks/generate", userPk(user), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response struct {
		Looks []models.Look `json:"looks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Looks, 2)
	allowed := map[string]bool{
		fmt.Sprintf("closet-%d", items[0].ID): true,
		fmt.Sprintf("closet-%d", items[1].ID): true,
	}
	for _, look := range response.Looks {
		for _, item := range look.Items {
			assert.True(t, allowed[item.ID], "look references item outside the selection: %s", item.ID)
			assert.Equal(t, models.SourceCloset, item.Source)
		}
	}
}

func TestGenerateLooksDeclinedThinSelection(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUserWithProfile(db)
	items := seedWardrobe(t, db, user.ID)

	// A single selected piece is not enough to style a look.
	reqBody := GenerateLooksRequest{
		Occasion:        "gallery opening",
		WardrobeItemIDs: []uint{items[0].ID},
	}
	req := test.NewJSONAuthRequest("POST", "/looks/generate", userPk(user), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var response struct {
		Message string `json:"message"`
		Kind    string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, string(services.ErrGenerationDeclined), response.Kind)
	assert.NotEmpty(t, response.Message)
}

func TestGenerateLooksNoProfile(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest("POST", "/looks/generate", userPk(user), GenerateLooksRequest{Occasion: "brunch"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestGenerateLooksEmptyPool(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUserWithProfile(db)
	// empty the seeded catalog so the store fallback yields nothing either
	db.Where("1 = 1").Delete(&models.StoreProduct{})

	req := test.NewJSONAuthRequest("POST", "/looks/generate", userPk(user), GenerateLooksRequest{Occasion: "brunch"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateLooksMissingOccasion(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUserWithProfile(db)

	req := test.NewJSONAuthRequest("POST", "/looks/generate", userPk(user), GenerateLooksRequest{})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateLooksStoreFallback(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUserWithProfile(db)
	// empty wardrobe: the seeded store catalog carries the generation

	req := test.NewJSONAuthRequest("POST", "/looks/generate", userPk(user), GenerateLooksRequest{Occasion: "date night"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var response struct {
		Looks []models.Look `json:"looks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Looks, 2)
	for _, look := range response.Looks {
		for _, item := range look.Items {
			assert.Equal(t, models.SourceStore, item.Source)
			assert.NotNil(t, item.Brand)
		}
	}
}

func TestGetGenerationRequest(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUserWithProfile(db)

	generation := models.LookGeneration{
		UserAccountID:  user.ID,
		OccasionPrompt: "office day",
		Status:         "completed",
	}
	require.NoError(t, generation.SetResult([]models.Look{
		{ID: "look-1", Name: "The Relaxed Classic", Description: "Easy", ImageURL: "https://picsum.photos/seed/easy/400/600", Score: 9.2},
	}))
	db.Create(&generation)

	req := test.NewJSONAuthRequest("GET", fmt.Sprintf("/looks/requests/%v", generation.ID), userPk(user), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var response struct {
		Status string        `json:"status"`
		Looks  []models.Look `json:"looks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "completed", response.Status)
	require.Len(t, response.Looks, 1)
	assert.Equal(t, "The Relaxed Classic", response.Looks[0].Name)
}

func TestGetGenerationRequestOtherUser(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUserWithProfile(db)

	generation := models.LookGeneration{
		UserAccountID:  user.ID + 1000,
		OccasionPrompt: "not yours",
		Status:         "completed",
	}
	db.Create(&generation)

	req := test.NewJSONAuthRequest("GET", fmt.Sprintf("/looks/requests/%v", generation.ID), userPk(user), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveAndListSavedLooks(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUserWithProfile(db)

	saveBody := SaveLookRequest{
		LookID:      "look-1",
		Name:        "The Relaxed Classic",
		Description: StrPointer("Soft neutrals for a slow morning"),
		ImageURL:    "https://picsum.photos/seed/the-relaxed-classic/400/600",
		Score:       9.2,
		Items: []models.CandidateItem{
			{ID: "closet-1", Name: "White Linen Blouse", Category: "Blouses"},
			{ID: "store-2", Name: "Tailored Wool Blazer", Category: "Jackets & Coats", Brand: StrPointer("Form & Thread")},
		},
	}
	req := test.NewJSONAuthRequest("POST", "/looks/saved", userPk(user), saveBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	listReq := test.NewJSONAuthRequest("GET", "/looks/saved", userPk(user), nil)
	listRec := httptest.NewRecorder()
	e.ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	var listResponse struct {
		Looks []struct {
			ID     uint                   `json:"id"`
			LookID string                 `json:"look_id"`
			Name   string                 `json:"name"`
			Score  float64                `json:"score"`
			Items  []models.CandidateItem `json:"items"`
		} `json:"looks"`
	}
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listResponse))
	require.Len(t, listResponse.Looks, 1)
	saved := listResponse.Looks[0]
	assert.Equal(t, "look-1", saved.LookID)
	assert.Equal(t, 9.2, saved.Score)
	require.Len(t, saved.Items, 2)
	// provenance is re-derived structurally on save: branded means store
	assert.Equal(t, models.SourceCloset, saved.Items[0].Source)
	assert.Equal(t, models.SourceStore, saved.Items[1].Source)

	deleteReq := test.NewJSONAuthRequest("DELETE", fmt.Sprintf("/looks/saved/%v", saved.ID), userPk(user), nil)
	deleteRec := httptest.NewRecorder()
	e.ServeHTTP(deleteRec, deleteReq)
	require.Equal(t, http.StatusOK, deleteRec.Code)

	var count int64
	db.Model(&models.SavedLook{}).Where("owner_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestSaveLookInvalid(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUserWithProfile(db)

	// missing image_url
	req := test.NewJSONAuthRequest("POST", "/looks/saved", userPk(user), SaveLookRequest{
		LookID: "look-1",
		Name:   "No Image",
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListGenerationRequests(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUserWithProfile(db)

	kind := string(services.ErrQuotaExceeded)
	db.Create(&models.LookGeneration{UserAccountID: user.ID, OccasionPrompt: "first", Status: "completed"})
	db.Create(&models.LookGeneration{UserAccountID: user.ID, OccasionPrompt: "second", Status: "failed", ErrorKind: &kind})
	db.Create(&models.LookGeneration{UserAccountID: user.ID + 1000, OccasionPrompt: "other user", Status: "pending"})

	req := test.NewJSONAuthRequest("GET", "/looks/requests", userPk(user), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response struct {
		Requests []struct {
			Occasion  string  `json:"occasion"`
			Status    string  `json:"status"`
			ErrorKind *string `json:"error_kind"`
		} `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Requests, 2)
	for _, r := range response.Requests {
		assert.NotEqual(t, "other user", r.Occasion)
	}
}
