package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/yjsyyyjszf/orthanc-dicomweb/common/config"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
)

// fakeRepository is an in-memory clients.Repository for tests. Paths
// not present in the maps behave like a 404.
type fakeRepository struct {
	documents map[string]string
	files     map[string][]byte
	lookups   map[string]string

	stored     [][]byte
	storeErr   error
	nextID     int
	postedPath []string
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		documents: map[string]string{},
		files:     map[string][]byte{},
		lookups:   map[string]string{},
	}
}

func (f *fakeRepository) Get(_ context.Context, path string) (json.RawMessage, bool, error) {
	doc, ok := f.documents[path]
	if !ok {
		return nil, false, nil
	}
	return json.RawMessage(doc), true, nil
}

func (f *fakeRepository) GetBytes(_ context.Context, path string) ([]byte, bool, error) {
	data, ok := f.files[path]
	if !ok {
		return nil, false, nil
	}
	return data, true, nil
}

func (f *fakeRepository) Post(_ context.Context, path string, body []byte) (json.RawMessage, error) {
	f.postedPath = append(f.postedPath, path)
	answer, ok := f.lookups[string(body)]
	if !ok {
		return json.RawMessage("[]"), nil
	}
	return json.RawMessage(answer), nil
}

func (f *fakeRepository) PostInstance(_ context.Context, data []byte) (string, error) {
	if f.storeErr != nil {
		return "", f.storeErr
	}
	f.stored = append(f.stored, data)
	f.nextID++
	return fmt.Sprintf("repo-id-%d", f.nextID), nil
}

// fakeRemote records every call and replays canned answers in order.
type fakeRemote struct {
	calls   []remoteCall
	answers []remoteAnswer
}

type remoteCall struct {
	method  string
	uri     string
	headers map[string]string
	body    []byte
}

type remoteAnswer struct {
	headers http.Header
	body    []byte
	err     error
}

func (f *fakeRemote) Call(_ context.Context, _ config.RemoteServer, method, uri string, headers map[string]string, body []byte) (http.Header, []byte, error) {
	f.calls = append(f.calls, remoteCall{method: method, uri: uri, headers: headers, body: body})
	if len(f.answers) == 0 {
		return nil, nil, dwerr.New(dwerr.NetworkProtocol, "no canned answer left")
	}
	answer := f.answers[0]
	f.answers = f.answers[1:]
	return answer.headers, answer.body, answer.err
}

func testLogger() *slog.Logger {
	return slog.Default()
}

// stowAck builds a remote STOW-RS acknowledgement with the given
// sequence sizes, in the shape checkStowAnswer expects.
func stowAck(acked, failed int) []byte {
	item := map[string]any{"00081155": map[string]any{"vr": "UI", "Value": []any{"1.2.3"}}}
	doc := map[string]any{
		"00081199": map[string]any{"vr": "SQ", "Value": repeatItem(item, acked)},
	}
	if failed > 0 {
		doc["00081198"] = map[string]any{"vr": "SQ", "Value": repeatItem(item, failed)}
	}
	payload, _ := json.Marshal(doc)
	return payload
}

func repeatItem(item map[string]any, n int) []any {
	items := make([]any, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, item)
	}
	return items
}
