package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func echoHandler(ctx context.Context, params json.RawMessage) (any, *Error) {
	var p map[string]any
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, Errorf(CodeInternal, "Internal error: %v", err)
	}
	return p, nil
}

func testHandlers() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"echo": echoHandler,
		"fail": func(ctx context.Context, params json.RawMessage) (any, *Error) {
			return nil, Errorf(CodeInternal, "Internal error: boom")
		},
		"explode": func(ctx context.Context, params json.RawMessage) (any, *Error) {
			panic("kaboom")
		},
	}
}

func serve(t *testing.T, input string, handlers map[string]HandlerFunc) []string {
	t.Helper()
	var out bytes.Buffer
	srv := NewServer(strings.NewReader(input), &out, handlers, nil)
	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	return outputLines(t, out)
}

func outputLines(t *testing.T, out bytes.Buffer) []string {
	t.Helper()
	text := out.String()
	if text == "" {
		return nil
	}
	if !strings.HasSuffix(text, "\n") {
		t.Fatalf("output not newline terminated: %q", text)
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

func decodeResponse(t *testing.T, line string) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("decode response %q: %v", line, err)
	}
	if resp.JSONRPC != Version {
		t.Fatalf("expected jsonrpc %q, got %q", Version, resp.JSONRPC)
	}
	return resp
}

func TestResponseEchoesID(t *testing.T) {
	cases := []struct {
		name string
		id   string
		want string
	}{
		{"string id", `"abc"`, `"abc"`},
		{"numeric id", `7`, `7`},
		{"null id", `null`, `null`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := `{"jsonrpc":"2.0","id":` + tc.id + `,"method":"echo","params":{"a":1}}` + "\n"
			lines := serve(t, input, testHandlers())
			if len(lines) != 1 {
				t.Fatalf("expected 1 response, got %d", len(lines))
			}
			resp := decodeResponse(t, lines[0])
			if string(resp.ID) != tc.want {
				t.Fatalf("expected id %s, got %s", tc.want, resp.ID)
			}
			if resp.Result == nil || resp.Error != nil {
				t.Fatalf("expected success response, got %s", lines[0])
			}
		})
	}

	t.Run("absent id answered with null", func(t *testing.T) {
		lines := serve(t, `{"jsonrpc":"2.0","method":"echo"}`+"\n", testHandlers())
		resp := decodeResponse(t, lines[0])
		if string(resp.ID) != "null" && resp.ID != nil {
			t.Fatalf("expected null id, got %s", resp.ID)
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal([]byte(lines[0]), &raw); err != nil {
			t.Fatalf("decode raw: %v", err)
		}
		if id, ok := raw["id"]; !ok || string(id) != "null" {
			t.Fatalf("expected explicit id:null on the wire, got %s", lines[0])
		}
	})
}

func TestMethodNotFound(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"method":"not_a_method","params":{"x":1}}` + "\n" +
		`{"jsonrpc":"2.0","id":2}` + "\n"
	lines := serve(t, input, testHandlers())
	if len(lines) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(lines))
	}
	first := decodeResponse(t, lines[0])
	if first.Error == nil || first.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected method-not-found error, got %s", lines[0])
	}
	if !strings.Contains(first.Error.Message, "not_a_method") {
		t.Fatalf("expected offending method name in message, got %q", first.Error.Message)
	}
	// missing method decodes to "" and is still answered, not crashed on
	second := decodeResponse(t, lines[1])
	if second.Error == nil || second.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected method-not-found for missing method, got %s", lines[1])
	}
}

func TestParseErrorKeepsLoopAlive(t *testing.T) {
	input := "{this is not json\n" +
		`{"jsonrpc":"2.0","id":9,"method":"echo","params":{}}` + "\n"
	lines := serve(t, input, testHandlers())
	if len(lines) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(lines))
	}
	first := decodeResponse(t, lines[0])
	if first.Error == nil || first.Error.Code != CodeParseError {
		t.Fatalf("expected parse error, got %s", lines[0])
	}
	if string(first.ID) != "null" && first.ID != nil {
		t.Fatalf("expected null id on parse error, got %s", first.ID)
	}
	second := decodeResponse(t, lines[1])
	if second.Error != nil || string(second.ID) != "9" {
		t.Fatalf("expected loop to keep serving, got %s", lines[1])
	}
}

func TestBlankFramesDiscarded(t *testing.T) {
	input := "\n   \n\t\n" + `{"jsonrpc":"2.0","id":1,"method":"echo"}` + "\n"
	lines := serve(t, input, testHandlers())
	if len(lines) != 1 {
		t.Fatalf("expected 1 response, got %d: %v", len(lines), lines)
	}
}

func TestTrailingPartialFrameDropped(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"method":"echo"}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"echo"}` // no trailing newline
	lines := serve(t, input, testHandlers())
	if len(lines) != 1 {
		t.Fatalf("expected only the terminated frame answered, got %d", len(lines))
	}
}

func TestResponsesInRequestOrder(t *testing.T) {
	var input strings.Builder
	ids := []string{"10", "11", "12", "13", "14"}
	for _, id := range ids {
		input.WriteString(`{"jsonrpc":"2.0","id":` + id + `,"method":"echo","params":{"n":` + id + `}}` + "\n")
	}
	lines := serve(t, input.String(), testHandlers())
	if len(lines) != len(ids) {
		t.Fatalf("expected %d responses, got %d", len(ids), len(lines))
	}
	for i, line := range lines {
		resp := decodeResponse(t, line)
		if string(resp.ID) != ids[i] {
			t.Fatalf("response %d out of order: expected id %s, got %s", i, ids[i], resp.ID)
		}
	}
}

func TestHandlerErrorResponse(t *testing.T) {
	lines := serve(t, `{"jsonrpc":"2.0","id":1,"method":"fail"}`+"\n", testHandlers())
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(lines[0]), &raw); err != nil {
		t.Fatalf("decode raw: %v", err)
	}
	if _, ok := raw["result"]; ok {
		t.Fatalf("error response must not carry result: %s", lines[0])
	}
	resp := decodeResponse(t, lines[0])
	if resp.Error == nil || resp.Error.Code != CodeInternal {
		t.Fatalf("expected internal error, got %s", lines[0])
	}
	if !strings.Contains(resp.Error.Message, "boom") {
		t.Fatalf("expected short description, got %q", resp.Error.Message)
	}
}

func TestPanicIsolatedPerRequest(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"method":"explode"}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"echo"}` + "\n"
	lines := serve(t, input, testHandlers())
	if len(lines) != 2 {
		t.Fatalf("expected the loop to survive a panicking handler, got %d responses", len(lines))
	}
	first := decodeResponse(t, lines[0])
	if first.Error == nil || first.Error.Code != CodeInternal {
		t.Fatalf("expected internal error from panic, got %s", lines[0])
	}
	second := decodeResponse(t, lines[1])
	if second.Error != nil {
		t.Fatalf("expected next request served normally, got %s", lines[1])
	}
}

func TestMissingParamsDefaultToEmptyObject(t *testing.T) {
	var got string
	handlers := map[string]HandlerFunc{
		"probe": func(ctx context.Context, params json.RawMessage) (any, *Error) {
			got = string(params)
			return map[string]any{}, nil
		},
	}
	serve(t, `{"jsonrpc":"2.0","id":1,"method":"probe"}`+"\n", handlers)
	if got != "{}" {
		t.Fatalf("expected empty params object, got %q", got)
	}
}

func TestShutdownStopsBufferedDispatch(t *testing.T) {
	var out bytes.Buffer
	var srv *Server
	handlers := map[string]HandlerFunc{
		"echo": echoHandler,
		"shutdown": func(ctx context.Context, params json.RawMessage) (any, *Error) {
			srv.Shutdown()
			return map[string]any{"success": true}, nil
		},
	}
	input := `{"jsonrpc":"2.0","id":1,"method":"shutdown"}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"echo"}` + "\n"
	srv = NewServer(strings.NewReader(input), &out, handlers, nil)
	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := outputLines(t, out)
	if len(lines) != 1 {
		t.Fatalf("expected no dispatch after shutdown, got %d responses", len(lines))
	}
	resp := decodeResponse(t, lines[0])
	if resp.Error != nil || string(resp.ID) != "1" {
		t.Fatalf("expected shutdown success response, got %s", lines[0])
	}
}

func TestNotifyFrameShape(t *testing.T) {
	var out bytes.Buffer
	srv := NewServer(strings.NewReader(""), &out, nil, nil)
	if err := srv.Notify("network_status_changed", map[string]any{"tor_status": "connected"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	lines := outputLines(t, out)
	if len(lines) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(lines))
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(lines[0]), &raw); err != nil {
		t.Fatalf("decode notification: %v", err)
	}
	for _, forbidden := range []string{"id", "result", "error"} {
		if _, ok := raw[forbidden]; ok {
			t.Fatalf("notification must not carry %q: %s", forbidden, lines[0])
		}
	}
	if string(raw["method"]) != `"network_status_changed"` {
		t.Fatalf("unexpected method: %s", raw["method"])
	}
	if _, ok := raw["params"]; !ok {
		t.Fatalf("notification missing params: %s", lines[0])
	}
}

func TestDispatchTableCopiedAtConstruction(t *testing.T) {
	handlers := map[string]HandlerFunc{"echo": echoHandler}
	var out bytes.Buffer
	input := `{"jsonrpc":"2.0","id":1,"method":"late"}` + "\n"
	srv := NewServer(strings.NewReader(input), &out, handlers, nil)
	handlers["late"] = echoHandler // must have no effect
	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := outputLines(t, out)
	resp := decodeResponse(t, lines[0])
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected late registration to be ignored, got %s", lines[0])
	}
}
