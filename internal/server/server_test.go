package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leonardotrapani/factstream/internal/config"
	"github.com/leonardotrapani/factstream/internal/model"
	"github.com/leonardotrapani/factstream/internal/notify"
	"github.com/leonardotrapani/factstream/internal/testutil"
	"github.com/leonardotrapani/factstream/internal/transcriber"
	"github.com/leonardotrapani/factstream/internal/wire"
)

const waterClaim = "Water boils at 90 degrees Celsius at sea level"

type harness struct {
	srv       *Server
	ts        *httptest.Server
	backends  chan *testutil.MockBackend
	responder *testutil.ScriptedResponder

	mu      sync.Mutex
	results []model.FactCheckResult
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Providers["deepgram"] = config.ProviderConfig{APIKey: "dg-test-key"}
	cfg.Server.WriteTimeout = 2 * time.Second
	if mutate != nil {
		mutate(cfg)
	}

	h := &harness{
		backends: make(chan *testutil.MockBackend, 8),
		responder: &testutil.ScriptedResponder{
			Claims:  `[{"text":"` + waterClaim + `","confidence":0.9}]`,
			Queries: `{"queries":["boiling point of water"]}`,
			Verdict: `{"verdict":"FALSE","confidence":0.9,"explanation":"Water boils at 100C at sea level.","sources":["kb"]}`,
		},
	}
	collect := notify.Func[model.FactCheckResult](func(_ context.Context, r model.FactCheckResult) error {
		h.mu.Lock()
		h.results = append(h.results, r)
		h.mu.Unlock()
		return nil
	})

	h.srv = New(cfg, Deps{
		Responder: h.responder,
		Searcher:  &testutil.MockSearcher{},
		Results:   []notify.Observer[model.FactCheckResult]{collect},
	})
	h.srv.Sessions().SetBackendFactory(func(transcriber.Config) (transcriber.Backend, error) {
		b := testutil.NewMockBackend()
		h.backends <- b
		return b, nil
	})
	h.srv.newBatch = func(transcriber.Config) (transcriber.BatchTranscriber, error) {
		return transcriber.MockBatch{}, nil
	}

	h.ts = httptest.NewServer(h.srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.srv.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
		h.ts.Close()
	})
	return h
}

func (h *harness) streamURL() string {
	return "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/api/stream"
}

func (h *harness) dial(t *testing.T) *wire.Client {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	c, err := wire.Dial(ctx, h.streamURL(), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func (h *harness) backend(t *testing.T) *testutil.MockBackend {
	t.Helper()
	select {
	case b := <-h.backends:
		return b
	case <-time.After(3 * time.Second):
		t.Fatal("no backend created")
		return nil
	}
}

func (h *harness) verdicts() []model.FactCheckResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.FactCheckResult(nil), h.results...)
}

type readResult struct {
	msg wire.Message
	err error
}

// readUntil reads messages until match returns true, failing after 5s
func readUntil(t *testing.T, c *wire.Client, match func(wire.Message) bool) wire.Message {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		ch := make(chan readResult, 1)
		go func() {
			m, err := c.Read()
			ch <- readResult{m, err}
		}()
		select {
		case r := <-ch:
			if r.err != nil {
				t.Fatalf("Read() error = %v", r.err)
			}
			if match(r.msg) {
				return r.msg
			}
		case <-deadline:
			t.Fatal("timed out waiting for message")
		}
	}
}

func status(s string) func(wire.Message) bool {
	return func(m wire.Message) bool { return m.Kind() == "status" && m.Status == s }
}

func kind(k string) func(wire.Message) bool {
	return func(m wire.Message) bool { return m.Kind() == k }
}

func intPtr(v int) *int { return &v }

func TestStream_FullSession(t *testing.T) {
	h := newHarness(t, nil)
	c := h.dial(t)

	hello := readUntil(t, c, status(wire.StatusConnected))
	if hello.SessionID == "" {
		t.Fatal("connected status without session_id")
	}

	if err := c.Start(&model.AudioFormatUpdate{SampleRate: intPtr(48000)}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, c, status(wire.StatusStarted))

	b := h.backend(t)
	if f := b.Formats(); len(f) != 1 || f[0].SampleRate != 48000 || f[0].Encoding != "linear16" {
		t.Errorf("backend formats = %+v", f)
	}

	if err := c.SendAudio([]byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	testutil.WaitForCondition(t, func() bool { return len(b.Sent()) == 1 }, 2*time.Second)

	b.Emit(model.TranscriptEvent{ID: "t1", Text: "Water boils at 90 degrees.", Confidence: 0.3, IsFinal: false})
	b.Emit(model.TranscriptEvent{ID: "t2", Text: waterClaim + ".", Confidence: 0.97, IsFinal: true})

	partial := readUntil(t, c, kind("transcript"))
	if partial.Text() != "Water boils at 90 degrees." || partial.IsFinal {
		t.Errorf("first transcript = %q final=%v", partial.Text(), partial.IsFinal)
	}
	final := readUntil(t, c, kind("transcript"))
	if !final.IsFinal {
		t.Error("second transcript not final")
	}

	claim := readUntil(t, c, kind(wire.TypeClaim))
	if claim.Claim.Text != waterClaim || claim.Claim.Metadata["session_id"] != hello.SessionID {
		t.Errorf("claim = %+v", claim.Claim)
	}
	check := readUntil(t, c, kind(wire.TypeFactCheck))
	if check.Result.Verdict != model.VerdictFalse || check.Result.Claim.Text != waterClaim {
		t.Errorf("fact check = %+v", check.Result)
	}

	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
	stopped := readUntil(t, c, status(wire.StatusStopped))
	if stopped.SessionID != hello.SessionID {
		t.Errorf("stopped session_id = %q", stopped.SessionID)
	}
	if _, err := c.Read(); err == nil {
		t.Error("connection still open after stop")
	}

	testutil.WaitForCondition(t, func() bool { return h.srv.Sessions().Registry().Len() == 0 }, 2*time.Second)
	if b.Stops() != 1 {
		t.Errorf("backend stopped %d times, want 1", b.Stops())
	}
	if v := h.verdicts(); len(v) != 1 {
		t.Errorf("shared result observers saw %d verdicts, want 1", len(v))
	}
}

func TestStream_IgnoresInvalidMessages(t *testing.T) {
	h := newHarness(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(h.streamURL(), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	var hello map[string]any
	if err := conn.ReadJSON(&hello); err != nil || hello["status"] != wire.StatusConnected {
		t.Fatalf("hello = %v, err = %v", hello, err)
	}

	for _, frame := range []string{"not json", `{"command":"dance"}`, `{}`, `{"command":"start"}`} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatal(err)
		}
	}

	// the first reply after the garbage is the start acknowledgement
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var next map[string]any
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatal(err)
	}
	if next["status"] != wire.StatusStarted {
		t.Errorf("reply = %v, want started", next)
	}
}

func TestStream_AudioBeforeStartAutoStarts(t *testing.T) {
	h := newHarness(t, nil)
	c := h.dial(t)
	readUntil(t, c, status(wire.StatusConnected))

	if err := c.SendAudio(bytes.Repeat([]byte{0}, 320)); err != nil {
		t.Fatal(err)
	}
	readUntil(t, c, status(wire.StatusStarted))

	b := h.backend(t)
	testutil.WaitForCondition(t, func() bool { return len(b.Sent()) == 1 }, 2*time.Second)
	if b.Starts() != 1 {
		t.Errorf("Starts() = %d", b.Starts())
	}
}

func TestStream_StartFailureKeepsConnection(t *testing.T) {
	h := newHarness(t, nil)
	h.srv.Sessions().SetBackendFactory(func(transcriber.Config) (transcriber.Backend, error) {
		b := testutil.NewMockBackend()
		b.StartError = transcriber.NewTransportError("test-backend", "dial", context.DeadlineExceeded)
		h.backends <- b
		return b, nil
	})

	c := h.dial(t)
	readUntil(t, c, status(wire.StatusConnected))
	if err := c.Start(nil); err != nil {
		t.Fatal(err)
	}
	msg := readUntil(t, c, kind("error"))
	if !strings.HasPrefix(msg.Error, "Error starting transcription:") {
		t.Errorf("error = %q", msg.Error)
	}

	// still open: a second start is answered
	if err := c.Start(nil); err != nil {
		t.Fatal(err)
	}
	readUntil(t, c, kind("error"))
	if h.srv.Sessions().Registry().Len() != 1 {
		t.Error("session dropped after start failure")
	}
}

func TestStream_ClientDisconnectClosesSession(t *testing.T) {
	h := newHarness(t, nil)
	c := h.dial(t)
	readUntil(t, c, status(wire.StatusConnected))
	if err := c.Start(nil); err != nil {
		t.Fatal(err)
	}
	readUntil(t, c, status(wire.StatusStarted))
	b := h.backend(t)

	_ = c.Close()

	testutil.WaitForCondition(t, func() bool { return h.srv.Sessions().Registry().Len() == 0 }, 3*time.Second)
	if b.Stops() != 1 {
		t.Errorf("backend stopped %d times, want 1", b.Stops())
	}
}

func TestServer_ShutdownClosesStreams(t *testing.T) {
	h := newHarness(t, nil)
	c := h.dial(t)
	readUntil(t, c, status(wire.StatusConnected))

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := h.srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if _, err := c.Read(); err == nil {
		t.Error("stream still open after shutdown")
	} else if !wire.IsNormalClose(err) {
		t.Logf("read after shutdown: %v", err)
	}
	if n := h.srv.Sessions().Registry().Len(); n != 0 {
		t.Errorf("%d sessions left after shutdown", n)
	}

	if _, err := wire.Dial(ctx, h.streamURL(), nil); err == nil {
		t.Error("new stream accepted after shutdown")
	}
}

func TestStream_OriginCheck(t *testing.T) {
	h := newHarness(t, func(c *config.Config) {
		c.Server.AllowedOrigins = []string{"https://ok.example"}
	})
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := wire.Dial(ctx, h.streamURL(), http.Header{"Origin": {"https://evil.example"}}); err == nil {
		t.Error("foreign origin accepted")
	}
	c, err := wire.Dial(ctx, h.streamURL(), http.Header{"Origin": {"https://ok.example"}})
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	defer c.Close()
	readUntil(t, c, status(wire.StatusConnected))
}

func TestStream_SessionLog(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, func(c *config.Config) { c.Sink.JSONLDir = dir })

	c := h.dial(t)
	readUntil(t, c, status(wire.StatusConnected))
	if err := c.Start(nil); err != nil {
		t.Fatal(err)
	}
	readUntil(t, c, status(wire.StatusStarted))
	b := h.backend(t)

	b.Emit(model.TranscriptEvent{ID: "t1", Text: waterClaim, Confidence: 0.9, IsFinal: true})
	readUntil(t, c, kind(wire.TypeFactCheck))
	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
	readUntil(t, c, status(wire.StatusStopped))
	testutil.WaitForCondition(t, func() bool { return h.srv.Sessions().Registry().Len() == 0 }, 3*time.Second)

	files, _ := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if len(files) != 1 {
		t.Fatalf("session logs = %v", files)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	for _, ev := range []string{"session_start", "transcript", "claim", "verdict", "session_end"} {
		if !strings.Contains(string(data), `"event":"`+ev+`"`) {
			t.Errorf("log missing %s event:\n%s", ev, data)
		}
	}
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if v != nil {
		_ = json.NewDecoder(resp.Body).Decode(v)
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url, body string, v any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if v != nil {
		_ = json.NewDecoder(resp.Body).Decode(v)
	}
	return resp.StatusCode
}

func TestServer_InfoAndHealth(t *testing.T) {
	h := newHarness(t, nil)

	var info map[string]any
	if code := getJSON(t, h.ts.URL+"/", &info); code != http.StatusOK || info["version"] != Version {
		t.Errorf("GET / = %d %v", code, info)
	}
	var health map[string]any
	if code := getJSON(t, h.ts.URL+"/healthz", &health); code != http.StatusOK || health["status"] != "ok" {
		t.Errorf("GET /healthz = %d %v", code, health)
	}
	if code := getJSON(t, h.ts.URL+"/nope", nil); code != http.StatusNotFound {
		t.Errorf("GET /nope = %d", code)
	}
}

func upload(t *testing.T, url, field, filename, contentType string, data []byte) (int, []byte) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	return resp.StatusCode, out.Bytes()
}

func TestServer_Transcribe(t *testing.T) {
	h := newHarness(t, nil)
	url := h.ts.URL + "/api/transcribe"

	code, body := upload(t, url, "file", "speech.wav", "audio/wav", []byte("RIFF....WAVEfmt "))
	if code != http.StatusOK {
		t.Fatalf("status = %d: %s", code, body)
	}
	var segments []wire.Transcript
	if err := json.Unmarshal(body, &segments); err != nil {
		t.Fatal(err)
	}
	if len(segments) != 3 || segments[0].Transcript == "" || !segments[0].IsFinal {
		t.Errorf("segments = %+v", segments)
	}

	tests := []struct {
		name, field, filename, contentType string
		data                               []byte
		want                               string
	}{
		{"unsupported type", "file", "notes.txt", "text/plain", []byte("hi"), "Unsupported file type"},
		{"empty file", "file", "speech.mp3", "audio/mpeg", nil, "Empty file"},
		{"wrong field", "audio", "speech.mp3", "audio/mpeg", []byte("x"), "Missing audio file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := upload(t, url, tt.field, tt.filename, tt.contentType, tt.data)
			if code != http.StatusBadRequest || !strings.Contains(string(body), tt.want) {
				t.Errorf("got %d %s, want 400 mentioning %q", code, body, tt.want)
			}
		})
	}
}

func TestServer_TranscribeTransportFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.srv.newBatch = func(transcriber.Config) (transcriber.BatchTranscriber, error) {
		return failingBatch{err: transcriber.NewTransportError("deepgram", "upload", errors.New("dial tcp: connection refused"))}, nil
	}

	code, body := upload(t, h.ts.URL+"/api/transcribe", "file", "speech.mp3", "audio/mpeg", []byte("ID3"))
	if code != http.StatusBadGateway {
		t.Errorf("transport failure: got %d %s, want 502", code, body)
	}

	h.srv.newBatch = func(transcriber.Config) (transcriber.BatchTranscriber, error) {
		return failingBatch{err: errors.New("deepgram: unexpected response shape")}, nil
	}
	code, body = upload(t, h.ts.URL+"/api/transcribe", "file", "speech.mp3", "audio/mpeg", []byte("ID3"))
	if code != http.StatusInternalServerError {
		t.Errorf("backend failure: got %d %s, want 500", code, body)
	}
}

type failingBatch struct{ err error }

func (f failingBatch) TranscribeFile(context.Context, []byte, model.AudioFormat) ([]model.TranscriptEvent, error) {
	return nil, f.err
}

func TestServer_Sessions(t *testing.T) {
	h := newHarness(t, nil)

	var list struct {
		Sessions []string `json:"sessions"`
	}
	if code := getJSON(t, h.ts.URL+"/api/sessions", &list); code != http.StatusOK || len(list.Sessions) != 0 {
		t.Fatalf("idle list = %d %+v", code, list)
	}

	c := h.dial(t)
	hello := readUntil(t, c, status(wire.StatusConnected))
	if err := c.Start(&model.AudioFormatUpdate{SampleRate: intPtr(48000)}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, c, status(wire.StatusStarted))

	if code := getJSON(t, h.ts.URL+"/api/sessions", &list); code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if len(list.Sessions) != 1 || list.Sessions[0] != hello.SessionID {
		t.Errorf("sessions = %v, want [%s]", list.Sessions, hello.SessionID)
	}

	var info SessionInfo
	if code := getJSON(t, h.ts.URL+"/api/sessions/"+hello.SessionID, &info); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if info.SessionID != hello.SessionID || info.State != "streaming" || info.Mock || info.Format.SampleRate != 48000 {
		t.Errorf("info = %+v", info)
	}

	var e wire.Error
	if code := getJSON(t, h.ts.URL+"/api/sessions/nope", &e); code != http.StatusNotFound || !strings.Contains(e.Error, "nope") {
		t.Errorf("unknown session = %d %+v", code, e)
	}

	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
	readUntil(t, c, status(wire.StatusStopped))
	testutil.WaitForCondition(t, func() bool { return h.srv.Sessions().Registry().Len() == 0 }, 2*time.Second)
	if code := getJSON(t, h.ts.URL+"/api/sessions/"+hello.SessionID, nil); code != http.StatusNotFound {
		t.Errorf("stopped session still visible: %d", code)
	}
}

func TestServer_FactCheckAPI(t *testing.T) {
	h := newHarness(t, nil)

	var verdict FactCheckResponse
	code := postJSON(t, h.ts.URL+"/fact-check/verify", `{"text":"`+waterClaim+`","context":"cooking show"}`, &verdict)
	if code != http.StatusOK {
		t.Fatalf("verify status = %d", code)
	}
	if verdict.Claim != waterClaim || verdict.Verdict != model.VerdictFalse || verdict.IsTrue || len(verdict.Sources) != 1 {
		t.Errorf("verify = %+v", verdict)
	}

	var detected []ClaimResponse
	if code := postJSON(t, h.ts.URL+"/fact-check/claims", `{"text":"`+waterClaim+`."}`, &detected); code != http.StatusOK {
		t.Fatalf("claims status = %d", code)
	}
	if len(detected) != 1 || detected[0].Confidence != 0.9 {
		t.Errorf("claims = %+v", detected)
	}

	var analyzed []FactCheckResponse
	if code := postJSON(t, h.ts.URL+"/fact-check/analyze", `{"text":"`+waterClaim+`."}`, &analyzed); code != http.StatusOK {
		t.Fatalf("analyze status = %d", code)
	}
	if len(analyzed) != 1 || analyzed[0].Verdict != model.VerdictFalse {
		t.Errorf("analyze = %+v", analyzed)
	}

	if n := len(h.verdicts()); n != 2 {
		t.Errorf("shared observers saw %d verdicts, want 2", n)
	}

	for _, tt := range []struct{ path, body string }{
		{"/fact-check/verify", `{"text":"  "}`},
		{"/fact-check/verify", `{"text":`},
		{"/fact-check/claims", `{}`},
		{"/fact-check/analyze", `[]`},
	} {
		var e wire.Error
		if code := postJSON(t, h.ts.URL+tt.path, tt.body, &e); code != http.StatusBadRequest || e.Error == "" {
			t.Errorf("POST %s %s = %d %+v", tt.path, tt.body, code, e)
		}
	}
}

func TestServer_ApplyReload(t *testing.T) {
	h := newHarness(t, nil)

	cfg := config.DefaultConfig()
	cfg.FactCheck.MaxIterations = 1
	cfg.FactCheck.Concurrency = 3
	cfg.Transcription.MockMode = true
	h.srv.Apply(cfg)

	engine, _, _ := h.srv.current()
	if o := engine.Options(); o.MaxIterations != 1 || o.Concurrency != 3 {
		t.Errorf("engine options = %+v", o)
	}
	if !h.srv.Sessions().Config().Transcription.ForceMock {
		t.Error("transcription config not applied to session manager")
	}
}
