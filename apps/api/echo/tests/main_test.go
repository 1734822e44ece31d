package tests

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/tujenge/kazipro/apps/api/echo"
	"github.com/tujenge/kazipro/core"
	"github.com/tujenge/kazipro/core/project"
	"github.com/tujenge/kazipro/core/reservation"
	"github.com/tujenge/kazipro/core/user"
	emailsvc "github.com/tujenge/kazipro/services/email"
	logsvc "github.com/tujenge/kazipro/services/logger"
	inmemdb "github.com/tujenge/kazipro/storage/database/inmem"
)

var (
	db      *inmemdb.DB
	app     Server
	usrRepo user.Repository
	prjRepo project.Repository
	resRepo reservation.Repository

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

func TestMain(m *testing.M) {
	core.Conf.TestMode = true
	core.Conf.Debug = false

	// set up DB & repos
	db = inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	prjRepo = inmemdb.NewProjectRepository(db)
	resRepo = inmemdb.NewReservationRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock()
	logger := logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	logger.Enable(false)

	usrSvc := user.NewService(usrRepo, mailSvc)
	prjSvc := project.NewService(prjRepo)
	resSvc := reservation.NewService(resRepo, prjSvc, usrSvc, mailSvc, logger, reservation.NewHub())

	// set up server
	app = NewServer(
		"",  /* addr */
		nil, /* shutdown */
		&Deps{
			Logger:         logger,
			UserSvc:        usrSvc,
			ProjectSvc:     prjSvc,
			ReservationSvc: resSvc,
		},
	)

	os.Exit(m.Run())
}

func resetDB(t *testing.T) {
	t.Helper()
	db.Reset()
	emailsvc.ResetSentMessages()
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	l1, ok1 := j1.([]interface{})
	l2, ok2 := j2.([]interface{})
	if ok1 && ok2 {
		return assert.ElementsMatch(t, l1, l2), nil
	}
	return false, nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
