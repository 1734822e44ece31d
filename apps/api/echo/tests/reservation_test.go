package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	echoapi "github.com/tujenge/kazipro/apps/api/echo"
	"github.com/tujenge/kazipro/core/project"
	"github.com/tujenge/kazipro/core/reservation"
	"github.com/tujenge/kazipro/core/user"
	testutil "github.com/tujenge/kazipro/tests"
)

type reservationFixture struct {
	admin      user.User
	supervisor user.User
	other      user.User
	student    user.User
	student2   user.User
	project    project.Project
}

func reservationSetup(t *testing.T) reservationFixture {
	resetDB(t)

	f := reservationFixture{
		admin:      testutil.CreateUser(t, usrRepo, "Admin", "admino", "admin@test.cd", "", user.RoleAdmin, true),
		supervisor: testutil.CreateUser(t, usrRepo, "Super", "superv", "sup@test.cd", "", user.RoleSupervisor, true),
		other:      testutil.CreateUser(t, usrRepo, "Super2", "superv2", "sup2@test.cd", "", user.RoleSupervisor, true),
		student:    testutil.CreateUser(t, usrRepo, "Asha", "ashaaa", "asha@test.cd", "", user.RoleStudent, true),
		student2:   testutil.CreateUser(t, usrRepo, "Neema", "neemaa", "neema@test.cd", "", user.RoleStudent, true),
	}
	f.project = testutil.CreateProject(t, prjRepo, "Smart Irrigation", f.admin.ID, f.supervisor.ID)
	return f
}

func Test_reservationAPI_reserve(t *testing.T) {
	f := reservationSetup(t)

	validBody := marchallObj(t, echoapi.ReserveRequest{ProjectID: f.project.ID, SupervisorID: f.supervisor.ID})

	tests := []httpTest{
		{name: "Auth required", body: validBody, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Students only", body: validBody, token: getToken(t, f.supervisor),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "required fields", token: getToken(t, f.student), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"project_id": "this field is required", "supervisor_id": "this field is required"}),
		},
		{
			name: "unknown project", token: getToken(t, f.student),
			body:     marchallObj(t, echoapi.ReserveRequest{ProjectID: "nope", SupervisorID: f.supervisor.ID}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "project not found"}),
		},
		{
			name: "supervisor not assigned to project", token: getToken(t, f.student),
			body:     marchallObj(t, echoapi.ReserveRequest{ProjectID: f.project.ID, SupervisorID: f.other.ID}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "supervisor is not assigned to this project"}),
		},
		{name: "reserved", body: validBody, token: getToken(t, f.student), wantCode: http.StatusCreated},
		{
			name: "duplicate reservation rejected", body: validBody, token: getToken(t, f.student),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "project already reserved by this student"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/reservations"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var res reservation.Reservation
				if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if res.Status != reservation.StatusPending {
					t.Errorf("Status = %q; want %q", res.Status, reservation.StatusPending)
				}
				if res.StudentID != f.student.ID {
					t.Errorf("StudentID = %q; want %q", res.StudentID, f.student.ID)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_reservationAPI_decide(t *testing.T) {
	f := reservationSetup(t)

	res := testutil.CreateReservation(t, resRepo, f.project, f.student, f.supervisor, reservation.StatusPending)
	decided := testutil.CreateReservation(t, resRepo, f.project, f.student2, f.supervisor, reservation.StatusRejected)

	approvePath := "/v1/reservations/" + res.ID + "/approve"
	rejectPath := "/v1/reservations/" + res.ID + "/reject"

	tests := []httpTest{
		{name: "Auth required", path: approvePath, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Student cannot decide", path: approvePath, token: getToken(t, f.student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Unassigned supervisor cannot decide", path: approvePath, token: getToken(t, f.other),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Unknown reservation", path: "/v1/reservations/nope/approve", token: getToken(t, f.supervisor),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "reservation not found"}),
		},
		{
			name: "Already decided", path: "/v1/reservations/" + decided.ID + "/reject", token: getToken(t, f.supervisor),
			body:     marchallObj(t, echoapi.RejectRequest{Feedback: "nope"}),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "reservation already decided"}),
		},
		{name: "Assigned supervisor approves", path: approvePath, token: getToken(t, f.supervisor), wantCode: http.StatusOK},
		{
			name: "Approved reservation cannot be re-decided", path: rejectPath, token: getToken(t, f.supervisor),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "reservation already decided"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPut

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var got reservation.Reservation
				if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if got.Status != reservation.StatusApproved {
					t.Errorf("Status = %q; want %q", got.Status, reservation.StatusApproved)
				}
				if !got.ResponseDate.Valid {
					t.Error("ResponseDate not set")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_reservationAPI_reject_feedback(t *testing.T) {
	f := reservationSetup(t)

	res := testutil.CreateReservation(t, resRepo, f.project, f.student, f.supervisor, reservation.StatusPending)

	body := marchallObj(t, echoapi.RejectRequest{Feedback: "Insufficient prerequisites"})
	req, rec := newAuthRequest(http.MethodPut, "/v1/reservations/"+res.ID+"/reject", getToken(t, f.admin), body)
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	var got reservation.Reservation
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if got.Status != reservation.StatusRejected {
		t.Errorf("Status = %q; want %q", got.Status, reservation.StatusRejected)
	}
	if got.Feedback.String != "Insufficient prerequisites" {
		t.Errorf("Feedback = %q; want %q", got.Feedback.String, "Insufficient prerequisites")
	}
}

func Test_reservationAPI_query_visibility(t *testing.T) {
	f := reservationSetup(t)

	res1 := testutil.CreateReservation(t, resRepo, f.project, f.student, f.supervisor, reservation.StatusPending)
	res2 := testutil.CreateReservation(t, resRepo, f.project, f.student2, f.supervisor, reservation.StatusApproved)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Privileged roles see all", token: getToken(t, f.admin), wantCode: http.StatusOK, wantData: marchallList(t, res1, res2)},
		{name: "Assigned supervisor sees theirs", token: getToken(t, f.supervisor), wantCode: http.StatusOK, wantData: marchallList(t, res1, res2)},
		{name: "Unassigned supervisor sees none", token: getToken(t, f.other), wantCode: http.StatusOK, wantData: marchallList(t)},
		{name: "Student sees own only", token: getToken(t, f.student), wantCode: http.StatusOK, wantData: marchallList(t, res1)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/v1/reservations"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_reservationAPI_statusFilter(t *testing.T) {
	f := reservationSetup(t)

	testutil.CreateReservation(t, resRepo, f.project, f.student, f.supervisor, reservation.StatusRejected)
	res := testutil.CreateReservation(t, resRepo, f.project, f.student, f.supervisor, reservation.StatusPending)

	v := make(url.Values)
	v.Add("status", string(reservation.StatusPending))
	req, rec := newAuthRequest(http.MethodGet, "/v1/reservations?"+v.Encode(), getToken(t, f.admin))
	app.ServeHTTP(rec, req)

	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, res)}, rec)
}

func Test_projectAPI_reservationStatus(t *testing.T) {
	f := reservationSetup(t)

	path := "/v1/projects/" + f.project.ID + "/status"

	// never reserved
	req, rec := newAuthRequest(http.MethodGet, path, getToken(t, f.student))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, echoapi.ProjectStatusResponse{ProjectID: f.project.ID}),
	}, rec)

	// pending claim
	testutil.CreateReservation(t, resRepo, f.project, f.student, f.supervisor, reservation.StatusPending)
	req, rec = newAuthRequest(http.MethodGet, path, getToken(t, f.student))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, echoapi.ProjectStatusResponse{ProjectID: f.project.ID, Reserved: true, Status: reservation.StatusPending}),
	}, rec)

	// another student is unaffected
	req, rec = newAuthRequest(http.MethodGet, path, getToken(t, f.student2))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, echoapi.ProjectStatusResponse{ProjectID: f.project.ID}),
	}, rec)
}

func Test_reservationAPI_watch(t *testing.T) {
	f := reservationSetup(t)

	srv := httptest.NewServer(app)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/reservations/watch"
	header := http.Header{"Authorization": []string{"Bearer " + getToken(t, f.supervisor)}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("websocket.Dial() failed: %v", err)
	}
	defer conn.Close()

	body := marchallObj(t, echoapi.ReserveRequest{ProjectID: f.project.ID, SupervisorID: f.supervisor.ID})
	req, rec := newAuthRequest(http.MethodPost, "/v1/reservations", getToken(t, f.student), body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event reservation.Event
	if err = conn.ReadJSON(&event); err != nil {
		t.Fatalf("ReadJSON() failed: %v", err)
	}
	if event.Action != reservation.ActionCreated {
		t.Errorf("Action = %q; want %q", event.Action, reservation.ActionCreated)
	}
	if event.Reservation.StudentID != f.student.ID {
		t.Errorf("StudentID = %q; want %q", event.Reservation.StudentID, f.student.ID)
	}
}

func Test_reservationAPI_retrieve(t *testing.T) {
	f := reservationSetup(t)

	res := testutil.CreateReservation(t, resRepo, f.project, f.student, f.supervisor, reservation.StatusPending)
	path := "/v1/reservations/" + res.ID

	tests := []httpTest{
		{name: "Auth required", path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Owner", path: path, token: getToken(t, f.student), wantCode: http.StatusOK, wantData: marchallObj(t, res)},
		{name: "Assigned supervisor", path: path, token: getToken(t, f.supervisor), wantCode: http.StatusOK, wantData: marchallObj(t, res)},
		{name: "Privileged role", path: path, token: getToken(t, f.admin), wantCode: http.StatusOK, wantData: marchallObj(t, res)},
		{
			name: "Unrelated student denied", path: path, token: getToken(t, f.student2),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Unknown reservation", path: "/v1/reservations/nope", token: getToken(t, f.admin),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "reservation not found"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
