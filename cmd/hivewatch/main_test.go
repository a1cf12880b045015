package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	method string
	path   string
	body   string
}

func fakeService(t *testing.T, responses map[string]string) (string, *[]call) {
	t.Helper()
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		calls = append(calls, call{method: r.Method, path: r.URL.RequestURI(), body: string(b)})
		resp, ok := responses[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return srv.URL, &calls
}

func TestRun(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		resp     map[string]string
		wantCall call
		wantOut  string
		wantErr  string
	}{
		{
			name:     "watch",
			args:     []string{"watch", "hive-1", "-label", "Orchard"},
			resp:     map[string]string{"POST /watch": `{"entityId":"hive-1"}`},
			wantCall: call{method: http.MethodPost, path: "/watch", body: `{"entityId":"hive-1","label":"Orchard"}`},
			wantOut:  "watching hive-1\n",
		},
		{
			name:     "suppress_minutes",
			args:     []string{"suppress", "-minutes", "30"},
			resp:     map[string]string{"POST /alert/suppress": `{"suppressed":true}`},
			wantCall: call{method: http.MethodPost, path: "/alert/suppress", body: `{"minutes":30}`},
			wantOut:  "alert suppressed\n",
		},
		{
			name:     "suppress_session_no_alert",
			args:     []string{"suppress", "-session"},
			resp:     map[string]string{"POST /alert/suppress": `{"suppressed":false}`},
			wantCall: call{method: http.MethodPost, path: "/alert/suppress", body: `{"session":true}`},
			wantOut:  "no active alert\n",
		},
		{
			name:     "reactivate",
			args:     []string{"reactivate", "hive-1"},
			resp:     map[string]string{"DELETE /suppressions/hive-1": `{"reactivated":false}`},
			wantCall: call{method: http.MethodDelete, path: "/suppressions/hive-1"},
			wantOut:  "no suppression for hive-1\n",
		},
		{
			name:     "alert_none",
			args:     []string{"alert"},
			resp:     map[string]string{"GET /alert": `{"alert":null}`},
			wantCall: call{method: http.MethodGet, path: "/alert"},
			wantOut:  "no active alert\n",
		},
		{
			name:    "suppress_without_length",
			args:    []string{"suppress"},
			wantErr: "-minutes must be positive",
		},
		{
			name:    "suppress_too_long",
			args:    []string{"suppress", "-minutes", "307445735"},
			wantErr: "-minutes must not exceed",
		},
		{
			name:    "watch_without_id",
			args:    []string{"watch"},
			wantErr: "entityId is required",
		},
		{
			name:    "unknown",
			args:    []string{"dance"},
			wantErr: `unknown command "dance"`,
		},
		{
			name:     "unwatch_unknown",
			args:     []string{"unwatch", "hive-9"},
			wantCall: call{method: http.MethodDelete, path: "/watch?entityId=hive-9"},
			wantErr:  "status 404",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			addr, calls := fakeService(t, tt.resp)
			var out bytes.Buffer
			err := run(context.Background(), append([]string{"-addr", addr}, tt.args...), &out)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantOut, out.String())
			}
			if tt.wantCall.method == "" {
				assert.Empty(t, *calls)
				return
			}
			require.Len(t, *calls, 1)
			got := (*calls)[0]
			assert.Equal(t, tt.wantCall.method, got.method)
			assert.Equal(t, tt.wantCall.path, got.path)
			if tt.wantCall.body != "" {
				assert.JSONEq(t, tt.wantCall.body, got.body)
			}
		})
	}
}

func TestRun_WatchedPrintsJSON(t *testing.T) {
	addr, _ := fakeService(t, map[string]string{
		"GET /watch": `{"entities":[{"entityId":"hive-1","since":"2024-05-01T10:00:00Z"}]}`,
	})
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-addr", addr, "watched"}, &out))

	var entities []map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &entities))
	require.Len(t, entities, 1)
	assert.Equal(t, "hive-1", entities[0]["entityId"])
}
