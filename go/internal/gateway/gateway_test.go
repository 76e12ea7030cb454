package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/choicetrial/go/internal/dom"
	"github.com/mcdev12/choicetrial/go/internal/models"
	"github.com/mcdev12/choicetrial/go/internal/results"
	"github.com/mcdev12/choicetrial/go/internal/session"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func blankTrial() models.TrialConfig {
	stim := models.Stimulus{Name: "blank", Draw: func(*dom.Container, string) any { return nil }}
	return models.NewTrialConfig(stim, "no", "yes")
}

func newTestServer(t *testing.T, clock clockwork.Clock, store *results.MemoryStore) *httptest.Server {
	t.Helper()
	return newTrialServer(t, clock, store, blankTrial())
}

func newTrialServer(t *testing.T, clock clockwork.Clock, store *results.MemoryStore, trial models.TrialConfig) *httptest.Server {
	t.Helper()
	factory := func(participant string, container *dom.Container) (*session.Session, error) {
		return session.New(session.Params{
			Participant: participant,
			Experiment:  "gateway-test",
			Trials:      []models.TrialConfig{trial},
			Clock:       clock,
			Sink:        store,
		}, container), nil
	}

	mux := http.NewServeMux()
	NewService(DefaultConfig(), factory, store).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func readUntil(t *testing.T, conn *websocket.Conn, want EventType, match func(SessionEvent) bool) SessionEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var ev SessionEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if ev.Type == want && (match == nil || match(ev)) {
			return ev
		}
	}
}

func TestSessionOverWebSocket(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := results.NewMemoryStore()
	srv := newTestServer(t, clock, store)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session?participant=p42"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	render := readUntil(t, conn, EventTypeRender, func(ev SessionEvent) bool {
		return strings.Contains(string(ev.Data), "choice-response-button-1")
	})
	var payload RenderPayload
	if err := json.Unmarshal(render.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.TrialCount != 1 || !strings.Contains(payload.HTML, "<canvas") {
		t.Errorf("unexpected render payload: %+v", payload)
	}

	clock.Advance(620 * time.Millisecond)
	if err := conn.WriteJSON(ClientMessage{Type: ClientMessageClick, Choice: 1}); err != nil {
		t.Fatal(err)
	}

	done := readUntil(t, conn, EventTypeSessionCompleted, nil)
	var completed SessionCompletedPayload
	if err := json.Unmarshal(done.Data, &completed); err != nil {
		t.Fatal(err)
	}
	if len(completed.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(completed.Records))
	}
	rec := completed.Records[0]
	if rec.Participant != "p42" || rec.Result.Response == nil || *rec.Result.Response != 1 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Result.RT == nil || *rec.Result.RT != 620 {
		t.Errorf("RT = %v, want 620", rec.Result.RT)
	}

	sessionID, err := uuid.Parse(done.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if stored, err := store.SessionResults(context.Background(), sessionID); err != nil || len(stored) != 1 {
		t.Errorf("store has %d records (err %v), want 1", len(stored), err)
	}
}

func TestClickUsesPageMeasuredRT(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := results.NewMemoryStore()
	trial := blankTrial()
	trial.StimulusDuration = models.Millis(250)
	srv := newTrialServer(t, clock, store, trial)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session?participant=p7"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	render := readUntil(t, conn, EventTypeRender, func(ev SessionEvent) bool {
		return strings.Contains(string(ev.Data), "choice-response-button-1")
	})
	var payload RenderPayload
	if err := json.Unmarshal(render.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.StimulusDurationMS == nil || *payload.StimulusDurationMS != 250 {
		t.Errorf("stimulus_duration_ms = %v, want 250", payload.StimulusDurationMS)
	}

	// The click reaches the server well after the page timed it.
	clock.Advance(900 * time.Millisecond)
	rt := 412.5
	if err := conn.WriteJSON(ClientMessage{Type: ClientMessageClick, Choice: 0, RTMs: &rt}); err != nil {
		t.Fatal(err)
	}

	done := readUntil(t, conn, EventTypeSessionCompleted, nil)
	var completed SessionCompletedPayload
	if err := json.Unmarshal(done.Data, &completed); err != nil {
		t.Fatal(err)
	}
	if len(completed.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(completed.Records))
	}
	got := completed.Records[0].Result
	if got.RT == nil || *got.RT != 412.5 {
		t.Errorf("RT = %v, want 412.5", got.RT)
	}
	if got.Response == nil || *got.Response != 0 {
		t.Errorf("Response = %v, want 0", got.Response)
	}
}

func TestResultService(t *testing.T) {
	store := results.NewMemoryStore()
	srv := newTestServer(t, clockwork.NewFakeClock(), store)

	sessionID := uuid.New()
	rt, resp := 512.0, 0
	err := store.Save(context.Background(), results.Record{
		SessionID:   sessionID,
		Participant: "p7",
		TrialIndex:  0,
		Result:      models.TrialResult{TrialID: uuid.New(), RT: &rt, Response: &resp, Stimulus: "dots"},
	})
	if err != nil {
		t.Fatal(err)
	}

	client := connect.NewClient[wrapperspb.StringValue, structpb.Struct](
		srv.Client(), srv.URL+GetSessionResultsProcedure,
	)
	ctx := context.Background()

	res, err := client.CallUnary(ctx, connect.NewRequest(wrapperspb.String(sessionID.String())))
	if err != nil {
		t.Fatalf("GetSessionResults: %v", err)
	}
	body := res.Msg.AsMap()
	if body["session_id"] != sessionID.String() {
		t.Errorf("session_id = %v", body["session_id"])
	}
	recs, _ := body["records"].([]interface{})
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	result := recs[0].(map[string]interface{})["result"].(map[string]interface{})
	if result["rt"] != 512.0 || result["response"] != 0.0 {
		t.Errorf("result = %v", result)
	}

	_, err = client.CallUnary(ctx, connect.NewRequest(wrapperspb.String(uuid.NewString())))
	if got := connect.CodeOf(err); got != connect.CodeNotFound {
		t.Errorf("unknown session code = %v, want NotFound", got)
	}
	_, err = client.CallUnary(ctx, connect.NewRequest(wrapperspb.String("not-a-uuid")))
	if got := connect.CodeOf(err); got != connect.CodeInvalidArgument {
		t.Errorf("bad id code = %v, want InvalidArgument", got)
	}
}

func TestParticipantPage(t *testing.T) {
	srv := newTestServer(t, clockwork.NewFakeClock(), results.NewMemoryStore())

	res, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if !strings.Contains(string(body), `<div id="`+DisplayID+`">`) {
		t.Errorf("page lacks display container")
	}
	if !strings.Contains(string(body), "new WebSocket(") {
		t.Errorf("page lacks the websocket client")
	}
	if !strings.Contains(string(body), "performance.now()") {
		t.Errorf("page does not time responses itself")
	}

	res, err = http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", res.StatusCode)
	}
}
