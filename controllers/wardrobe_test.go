package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"stylemeapi/dbhelper"
	"stylemeapi/models"
	"stylemeapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWardrobeItemOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUser(db)

	reqBody := CreateWardrobeItemIn{
		Name:            "White Linen Blouse",
		FileName:        test.NewRefString("blouse.jpg"),
		Category:        "Blouses",
		CreationYear:    2021,
		ManualTechnique: "tailoring",
		FiberOrigin:     "organic",
		ItemStatus:      "ready",
	}
	req := test.NewJSONAuthRequest("POST", "/wardrobe/create", userPk(user), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var response WardrobeItemCreatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "White Linen Blouse", response.Item.Name)
	assert.Equal(t, "Blouses", response.Item.Category)
	assert.Equal(t, "idle", response.Item.ProcessingStatus)
	assert.Contains(t, response.FileUploadUrl, "blouse.jpg")

	var item models.WardrobeItem
	require.NoError(t, db.First(&item, response.Item.ID).Error)
	assert.Equal(t, user.ID, item.OwnerID)
	require.NotNil(t, item.ImageURL)
	assert.Equal(t, fmt.Sprintf("wardrobe/%v/blouse.jpg", user.ID), *item.ImageURL)
}

func TestCreateWardrobeItemUnknownCategory(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUser(db)

	reqBody := CreateWardrobeItemIn{
		Name:     "Mystery Piece",
		FileName: test.NewRefString("mystery.jpg"),
		Category: "Spacesuits",
	}
	req := test.NewJSONAuthRequest("POST", "/wardrobe/create", userPk(user), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateWardrobeItemMissingImage(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest("POST", "/wardrobe/create", userPk(user), CreateWardrobeItemIn{Name: "No Photo"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateWardrobeItemBadExtension(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUser(db)

	reqBody := CreateWardrobeItemIn{
		Name:     "Weird File",
		FileName: test.NewRefString("notes.pdf"),
		Category: "Blouses",
	}
	req := test.NewJSONAuthRequest("POST", "/wardrobe/create", userPk(user), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListWardrobeItemsGrouped(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUser(db)
	seedWardrobe(t, db, user.ID)
	uncategorized := models.WardrobeItem{OwnerID: user.ID, ImageURL: test.NewRefString("wardrobe/1/pending.jpg"), ProcessingStatus: "pending"}
	require.NoError(t, db.Create(&uncategorized).Error)

	req := test.NewJSONAuthRequest("GET", "/wardrobe/list", userPk(user), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var response struct {
		Items   []WardrobeItemResponse            `json:"items"`
		Grouped map[string][]WardrobeItemResponse `json:"grouped"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Len(t, response.Items, 4)
	assert.Len(t, response.Grouped["Blouses"], 1)
	assert.Len(t, response.Grouped["Uncategorized"], 1)
	for _, item := range response.Items {
		require.NotNil(t, item.Uri)
		assert.Contains(t, *item.Uri, "fakebucketurl.com")
	}
}

func TestListWardrobeEmptyOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest("GET", "/wardrobe/list", userPk(user), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response struct {
		Items []WardrobeItemResponse `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Empty(t, response.Items)
}

func TestUpdateWardrobeItem(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUser(db)
	items := seedWardrobe(t, db, user.ID)

	reqBody := UpdateWardrobeItemIn{
		Name:       test.NewRefString("Favorite Blouse"),
		IsFavorite: BoolPointer(true),
	}
	req := test.NewJSONAuthRequest("PUT", fmt.Sprintf("/wardrobe/%v", items[0].ID), userPk(user), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated models.WardrobeItem
	require.NoError(t, db.First(&updated, items[0].ID).Error)
	assert.Equal(t, "Favorite Blouse", updated.Name)
	assert.True(t, updated.IsFavorite)
	// untouched fields keep their values
	assert.Equal(t, "Blouses", updated.Category)
}

func TestUpdateWardrobeItemOtherUser(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUser(db)
	other := models.WardrobeItem{Name: "Not Yours", Category: "Shoes", OwnerID: user.ID + 1000}
	require.NoError(t, db.Create(&other).Error)

	req := test.NewJSONAuthRequest("PUT", fmt.Sprintf("/wardrobe/%v", other.ID), userPk(user), UpdateWardrobeItemIn{Name: test.NewRefString("Mine Now")})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteWardrobeItem(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())
	user := test.FakeUser(db)
	items := seedWardrobe(t, db, user.ID)

	req := test.NewJSONAuthRequest("DELETE", fmt.Sprintf("/wardrobe/%v", items[2].ID), userPk(user), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var count int64
	db.Model(&models.WardrobeItem{}).Where("owner_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestWardrobeRequiresAuth(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, testEngine())

	req := test.NewJSONRequest("GET", "/wardrobe/list", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
