package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nurpe/snowops-boq/internal/db"
	"github.com/nurpe/snowops-boq/internal/model"
)

const JWTSecret = "boq-test-secret"

// SetupTestDB opens an isolated in-memory sqlite database with the schema
// migrated. It is closed when the test completes.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Migrate(database, "sqlite"); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return database
}

func Logger() zerolog.Logger {
	return zerolog.Nop()
}

// SetupRouter creates a gin engine in test mode.
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// GenerateTestToken creates a signed access token for the given user and role.
func GenerateTestToken(userID, name string, role model.Role) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"name": name,
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  now.Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := token.SignedString([]byte(JWTSecret))
	return signed
}

func ManagerToken() string {
	return GenerateTestToken("user-manager", "Test Manager", model.RoleManager)
}

func ViewerToken() string {
	return GenerateTestToken("user-viewer", "Test Viewer", model.RoleViewer)
}

func Manager() model.Principal {
	return model.Principal{UserID: "user-manager", Name: "Test Manager", Role: model.RoleManager}
}

func Viewer() model.Principal {
	return model.Principal{UserID: "user-viewer", Name: "Test Viewer", Role: model.RoleViewer}
}

// DoRequest executes a JSON request against the test router.
func DoRequest(r http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		raw, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(raw)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

func SeedContract(t *testing.T, database *gorm.DB, code string) *model.Contract {
	t.Helper()
	contract := &model.Contract{
		ID:        uuid.New(),
		Code:      code,
		Name:      "Contract " + code,
		CreatedBy: "seed",
	}
	if err := database.Create(contract).Error; err != nil {
		t.Fatalf("failed to seed contract: %v", err)
	}
	return contract
}

// SeedContainer stores a non-leaf node.
func SeedContainer(t *testing.T, database *gorm.DB, contractID uuid.UUID, parentID *uuid.UUID, itemType model.ItemType, code string, order int) *model.ContractItem {
	t.Helper()
	item := &model.ContractItem{
		ID:          uuid.New(),
		ContractID:  contractID,
		ParentID:    parentID,
		Type:        itemType,
		Code:        code,
		Description: code,
		OrderIndex:  order,
	}
	if err := database.Create(item).Error; err != nil {
		t.Fatalf("failed to seed item %s: %v", code, err)
	}
	return item
}

// SeedItem stores an ITEM leaf with the given quantity and unit price.
func SeedItem(t *testing.T, database *gorm.DB, contractID uuid.UUID, parentID *uuid.UUID, code string, quantity, unitPrice string, order int) *model.ContractItem {
	t.Helper()
	unit := "m3"
	item := &model.ContractItem{
		ID:          uuid.New(),
		ContractID:  contractID,
		ParentID:    parentID,
		Type:        model.ItemTypeItem,
		Code:        code,
		Description: code,
		Unit:        &unit,
		Quantity:    decimal.NewNullDecimal(decimal.RequireFromString(quantity)),
		UnitPrice:   decimal.NewNullDecimal(decimal.RequireFromString(unitPrice)),
		OrderIndex:  order,
	}
	if err := database.Create(item).Error; err != nil {
		t.Fatalf("failed to seed item %s: %v", code, err)
	}
	return item
}

// SampleContract seeds S1{G1{A 10x100, B 2x50}, C 1x300}.
type SampleContract struct {
	Contract *model.Contract
	Stage    *model.ContractItem
	Group    *model.ContractItem
	A        *model.ContractItem
	B        *model.ContractItem
	C        *model.ContractItem
}

func SeedSample(t *testing.T, database *gorm.DB) SampleContract {
	t.Helper()
	contract := SeedContract(t, database, "CT-"+uuid.NewString()[:8])
	stage := SeedContainer(t, database, contract.ID, nil, model.ItemTypeStage, "S1", 0)
	group := SeedContainer(t, database, contract.ID, &stage.ID, model.ItemTypeGroup, "G1", 0)
	return SampleContract{
		Contract: contract,
		Stage:    stage,
		Group:    group,
		A:        SeedItem(t, database, contract.ID, &group.ID, "A", "10", "100", 0),
		B:        SeedItem(t, database, contract.ID, &group.ID, "B", "2", "50", 1),
		C:        SeedItem(t, database, contract.ID, &stage.ID, "C", "1", "300", 1),
	}
}
