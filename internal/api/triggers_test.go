package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/nerrad567/aqua-logic-core/internal/trigger"
)

const validConfigBody = `{
	"name": "Low DO Emergency",
	"enabled": true,
	"pond_id": "all",
	"kind": "threshold",
	"thresholds": [
		{"parameter": "dissolved_oxygen", "unit": "mg/L",
		 "critical_min": 3.5, "soft_min": 5.0, "soft_max": 18.0, "critical_max": 20.0}
	],
	"cooldown_seconds": 300,
	"confirmation_readings": 3,
	"auto_shutoff_minutes": 120,
	"priority": "critical"
}`

func TestCreateAndListConfigs(t *testing.T) {
	env := testServer(t)

	w := env.doRequest(t, http.MethodPost, "/api/v1/triggers/configs/", validConfigBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("create config = %d (body: %s)", w.Code, w.Body.String())
	}

	var created trigger.TriggerConfig
	decodeBody(t, w, &created)
	if created.ID == "" {
		t.Error("config ID should be generated")
	}

	var resp struct {
		Count int `json:"count"`
	}
	w = env.doRequest(t, http.MethodGet, "/api/v1/triggers/configs/", "")
	decodeBody(t, w, &resp)
	if resp.Count != 1 {
		t.Errorf("config count = %d, want 1", resp.Count)
	}

	w = env.doRequest(t, http.MethodGet, "/api/v1/triggers/configs/"+created.ID+"/", "")
	if w.Code != http.StatusOK {
		t.Errorf("get config = %d", w.Code)
	}
}

func TestCreateConfigValidation(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"pond_id":"all","kind":"threshold","priority":"high",
			"thresholds":[{"parameter":"ph","critical_min":5,"soft_min":6,"soft_max":8,"critical_max":9}],
			"confirmation_readings":1}`},
		{"bad kind", `{"name":"X","pond_id":"all","kind":"periodic","priority":"high","confirmation_readings":1}`},
		{"bad priority", `{"name":"X","pond_id":"all","kind":"manual","priority":"urgent","confirmation_readings":1}`},
		{"misordered threshold", `{"name":"X","pond_id":"all","kind":"threshold","priority":"high",
			"thresholds":[{"parameter":"ph","critical_min":8,"soft_min":6,"soft_max":8,"critical_max":9}],
			"confirmation_readings":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.doRequest(t, http.MethodPost, "/api/v1/triggers/configs/", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body: %s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestToggleConfig(t *testing.T) {
	env := testServer(t)

	w := env.doRequest(t, http.MethodPost, "/api/v1/triggers/configs/", validConfigBody)
	var created trigger.TriggerConfig
	decodeBody(t, w, &created)

	w = env.doRequest(t, http.MethodPost, "/api/v1/triggers/configs/"+created.ID+"/disable", "")
	if w.Code != http.StatusOK {
		t.Fatalf("disable = %d", w.Code)
	}
	if _, enabled := env.rules.Count(); enabled != 0 {
		t.Errorf("enabled count = %d, want 0", enabled)
	}

	w = env.doRequest(t, http.MethodPost, "/api/v1/triggers/configs/"+created.ID+"/enable", "")
	if w.Code != http.StatusOK {
		t.Fatalf("enable = %d", w.Code)
	}
	if _, enabled := env.rules.Count(); enabled != 1 {
		t.Errorf("enabled count = %d, want 1", enabled)
	}

	w = env.doRequest(t, http.MethodPost, "/api/v1/triggers/configs/missing/disable", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("toggle missing config = %d, want 404", w.Code)
	}
}

func TestUpdateThreshold(t *testing.T) {
	env := testServer(t)

	w := env.doRequest(t, http.MethodPost, "/api/v1/triggers/configs/", validConfigBody)
	var created trigger.TriggerConfig
	decodeBody(t, w, &created)

	w = env.doRequest(t, http.MethodPatch, "/api/v1/triggers/configs/"+created.ID+"/threshold",
		`{"parameter":"dissolved_oxygen","field":"soft_min","value":6.0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update threshold = %d (body: %s)", w.Code, w.Body.String())
	}

	var updated trigger.TriggerConfig
	decodeBody(t, w, &updated)
	if updated.Thresholds[0].SoftMin != 6.0 {
		t.Errorf("soft_min = %v, want 6.0", updated.Thresholds[0].SoftMin)
	}

	// A mis-ordered edit is rejected and leaves the rule untouched.
	w = env.doRequest(t, http.MethodPatch, "/api/v1/triggers/configs/"+created.ID+"/threshold",
		`{"parameter":"dissolved_oxygen","field":"critical_min","value":10.0}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("misordered edit = %d, want 400", w.Code)
	}

	cfg, err := env.rules.Get(created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.Thresholds[0].CriticalMin != 3.5 {
		t.Errorf("critical_min = %v, want 3.5 (edit must be atomic)", cfg.Thresholds[0].CriticalMin)
	}

	// Unknown field
	w = env.doRequest(t, http.MethodPatch, "/api/v1/triggers/configs/"+created.ID+"/threshold",
		`{"parameter":"dissolved_oxygen","field":"fuzziness","value":1.0}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown field = %d, want 400", w.Code)
	}
}

func TestListAndAcknowledgeEvents(t *testing.T) {
	env := testServer(t)
	ctx := context.Background()

	ev := &trigger.TriggerEvent{
		ConfigID:  "c1",
		PondID:    "pond-1",
		Parameter: "dissolved_oxygen",
		Value:     3.0,
		Action:    trigger.ActionActivated,
		Priority:  trigger.PriorityCritical,
		CreatedAt: time.Now().UTC(),
	}
	env.events.Append(ctx, ev)

	var resp struct {
		Events []trigger.TriggerEvent `json:"events"`
		Count  int                    `json:"count"`
	}
	w := env.doRequest(t, http.MethodGet, "/api/v1/triggers/events/", "")
	decodeBody(t, w, &resp)
	if resp.Count != 1 {
		t.Fatalf("event count = %d, want 1", resp.Count)
	}

	w = env.doRequest(t, http.MethodPost, "/api/v1/triggers/events/"+ev.ID+"/acknowledge", "")
	if w.Code != http.StatusOK {
		t.Fatalf("acknowledge = %d", w.Code)
	}

	w = env.doRequest(t, http.MethodGet, "/api/v1/triggers/events/?limit=1", "")
	decodeBody(t, w, &resp)
	if len(resp.Events) != 1 || !resp.Events[0].Acknowledged {
		t.Errorf("event not acknowledged: %+v", resp.Events)
	}

	w = env.doRequest(t, http.MethodPost, "/api/v1/triggers/events/missing/acknowledge", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("acknowledge missing = %d, want 404", w.Code)
	}

	w = env.doRequest(t, http.MethodGet, "/api/v1/triggers/events/?limit=nope", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", w.Code)
	}
}
