package e2e

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"modelrt/internal/httpapi"
	"modelrt/pkg/types"
)

func TestE2E_ModelLifecycle(t *testing.T) {
	srv := newServerForDir(t, createTempModelsDir(t, "alpha.bin", "beta.gguf"))

	var models types.ModelsResponse
	if code := doJSON(t, http.MethodGet, srv.URL+"/models", "", &models); code != http.StatusOK || len(models.Models) != 2 {
		t.Fatalf("models: %d %+v", code, models)
	}

	var ok types.BoolResponse
	for i := 0; i < 2; i++ {
		doJSON(t, http.MethodPost, srv.URL+"/models/alpha/load", "", &ok)
		if !ok.OK {
			t.Fatalf("load %d: expected ok", i)
		}
	}
	if n := srv.events.Count("ensure_ready"); n != 1 {
		t.Fatalf("expected a single allocation, got %d", n)
	}
	var loaded types.LoadedModelsResponse
	doJSON(t, http.MethodGet, srv.URL+"/models/loaded", "", &loaded)
	if len(loaded.Models) != 1 || loaded.Models[0] != "alpha" {
		t.Fatalf("loaded: %+v", loaded)
	}

	doJSON(t, http.MethodPost, srv.URL+"/models/m1/load", `{"location":"/models/m1"}`, &ok)
	if ok.OK {
		t.Fatalf("unregistered model must not load")
	}
	doJSON(t, http.MethodGet, srv.URL+"/models/loaded", "", &loaded)
	if len(loaded.Models) != 1 {
		t.Fatalf("failed load changed loaded set: %+v", loaded)
	}

	var info types.ModelDescriptor
	if code := doJSON(t, http.MethodGet, srv.URL+"/models/beta", "", &info); code != http.StatusOK || info.ID != "beta" {
		t.Fatalf("info: %d %+v", code, info)
	}
	if code := doJSON(t, http.MethodGet, srv.URL+"/models/nope", "", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}

	doJSON(t, http.MethodPost, srv.URL+"/models/alpha/unload", "", &ok)
	if !ok.OK {
		t.Fatalf("unload alpha failed")
	}
	doJSON(t, http.MethodPost, srv.URL+"/models/never-loaded/unload", "", &ok)
	if ok.OK {
		t.Fatalf("unload of never-loaded model must be false")
	}

	var st types.StatusResponse
	doJSON(t, http.MethodGet, srv.URL+"/status", "", &st)
	if st.LoadsTotal != 1 || st.UnloadsTotal != 1 || len(st.Sessions) != 0 {
		t.Fatalf("status: %+v", st)
	}
}

func TestE2E_Generate(t *testing.T) {
	srv := newServerForDir(t, createTempModelsDir(t, "alpha.bin"))
	var ok types.BoolResponse
	doJSON(t, http.MethodPost, srv.URL+"/models/alpha/load", "", &ok)

	body := `{"model":"alpha","prompt":"hello world","options":{"max_tokens":5,"seed":9}}`
	var res types.GenerationResult
	if code := doJSON(t, http.MethodPost, srv.URL+"/generate", body, &res); code != http.StatusOK {
		t.Fatalf("generate status=%d", code)
	}
	if res.TokensGenerated > 5 || (res.TokensGenerated < 5 && res.FinishReason != "stop") {
		t.Fatalf("unexpected result: %+v", res)
	}
	var again types.GenerationResult
	doJSON(t, http.MethodPost, srv.URL+"/generate", body, &again)
	if again.Text != res.Text {
		t.Fatalf("same seed diverged: %q vs %q", res.Text, again.Text)
	}

	var text types.TextResponse
	doJSON(t, http.MethodPost, srv.URL+"/generate?format=text", body, &text)
	if text.Text != res.Text {
		t.Fatalf("text format diverged: %q vs %q", text.Text, res.Text)
	}
}

func TestE2E_GenerateOnUnloadedModel(t *testing.T) {
	srv := newServerForDir(t, createTempModelsDir(t, "alpha.bin"))
	body := `{"model":"alpha","prompt":"hello"}`

	var text types.TextResponse
	if code := doJSON(t, http.MethodPost, srv.URL+"/generate?format=text", body, &text); code != http.StatusOK {
		t.Fatalf("text format must be 200, got %d", code)
	}
	if !strings.HasPrefix(text.Text, "[Inference Error:") {
		t.Fatalf("expected in-band error, got %q", text.Text)
	}

	var er types.ErrorResponse
	if code := doJSON(t, http.MethodPost, srv.URL+"/generate", body, &er); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d (%+v)", code, er)
	}
}

func TestE2E_InvalidOptions400(t *testing.T) {
	srv := newServerForDir(t, createTempModelsDir(t, "alpha.bin"))
	var ok types.BoolResponse
	doJSON(t, http.MethodPost, srv.URL+"/models/alpha/load", "", &ok)
	var er types.ErrorResponse
	if code := doJSON(t, http.MethodPost, srv.URL+"/generate", `{"model":"alpha","prompt":"x","options":{"temperature":-1}}`, &er); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%+v)", code, er)
	}
	// session survives a rejected request
	var res types.GenerationResult
	if code := doJSON(t, http.MethodPost, srv.URL+"/generate", `{"model":"alpha","prompt":"x","options":{"max_tokens":2}}`, &res); code != http.StatusOK {
		t.Fatalf("follow-up generate: %d", code)
	}
}

func TestE2E_RequestTimeoutCancelsDecode(t *testing.T) {
	srv := newServerForDir(t, createTempModelsDir(t, "alpha.bin"))
	var ok types.BoolResponse
	doJSON(t, http.MethodPost, srv.URL+"/models/alpha/load", "", &ok)

	httpapi.SetRequestTimeout(100 * time.Millisecond)
	code := doJSON(t, http.MethodPost, srv.URL+"/generate", `{"model":"alpha","prompt":"hello","options":{"max_tokens":1000000000}}`, nil)
	httpapi.SetRequestTimeout(0)
	if code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", code)
	}

	start := time.Now()
	var loaded types.LoadedModelsResponse
	if code := doJSON(t, http.MethodGet, srv.URL+"/models/loaded", "", &loaded); code != http.StatusOK {
		t.Fatalf("loaded: %d", code)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("worker kept decoding after cancel")
	}
}

func TestE2E_AnalyzeAndCleanup(t *testing.T) {
	srv := newServerForDir(t, createTempModelsDir(t, "alpha.bin", "beta.bin"))
	var ok types.BoolResponse
	doJSON(t, http.MethodPost, srv.URL+"/models/alpha/load", "", &ok)
	doJSON(t, http.MethodPost, srv.URL+"/models/beta/load", "", &ok)

	var res types.AnalysisResult
	body := `{"model":"alpha","content":"` + strings.Repeat("word ", 40) + `","kind":"keywords"}`
	if code := doJSON(t, http.MethodPost, srv.URL+"/analyze", body, &res); code != http.StatusOK {
		t.Fatalf("analyze: %d", code)
	}
	if res.Type != types.AnalysisKeywords || res.ModelUsed != "alpha" || !strings.HasSuffix(res.ContentPreview, "...") {
		t.Fatalf("unexpected analysis: %+v", res)
	}
	if code := doJSON(t, http.MethodPost, srv.URL+"/analyze", `{"model":"alpha","content":"x","kind":"haiku"}`, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", code)
	}

	if code := doJSON(t, http.MethodPost, srv.URL+"/cleanup", "", &ok); code != http.StatusOK || !ok.OK {
		t.Fatalf("cleanup: %d %+v", code, ok)
	}
	var loaded types.LoadedModelsResponse
	doJSON(t, http.MethodGet, srv.URL+"/models/loaded", "", &loaded)
	if len(loaded.Models) != 0 {
		t.Fatalf("cleanup left models loaded: %+v", loaded)
	}
}

func TestE2E_Probes(t *testing.T) {
	srv := newServerForDir(t, createTempModelsDir(t))
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status=%d", path, resp.StatusCode)
		}
	}
}
