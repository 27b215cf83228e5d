package categorize

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
)

func fakeCompletions(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		reply := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(reply)
	}))
}

func newTestStrategy(baseURL string) *OpenAIStrategy {
	return NewOpenAIStrategy(OpenAIConfig{APIKey: "test-key", BaseURL: baseURL}, nil)
}

func TestOpenAICategorizeOK(t *testing.T) {
	srv := fakeCompletions(t, `{"category":"Groceries","confidence":0.92,"reasoning":"grocery items"}`, http.StatusOK)
	defer srv.Close()

	res, err := newTestStrategy(srv.URL).Categorize(context.Background(), Request{
		Merchant:         "Walmart",
		ItemDescriptions: []string{"Milk", "Bread"},
	})
	require.NoError(t, err)
	assert.Equal(t, constants.Groceries, res.Category)
	assert.InDelta(t, 0.92, res.Confidence, 0.001)
	assert.Equal(t, constants.MethodRemoteModel, res.Method)
}

func TestOpenAICategorizeCoercesUnknownLabel(t *testing.T) {
	srv := fakeCompletions(t, `{"category":"Weapons","confidence":0.88}`, http.StatusOK)
	defer srv.Close()

	res, err := newTestStrategy(srv.URL).Categorize(context.Background(), Request{Merchant: "Shop"})
	require.NoError(t, err)
	assert.Equal(t, constants.Other, res.Category)
	assert.InDelta(t, CoercedConfidence, res.Confidence, 0.001)
}

func TestOpenAICategorizeSchemaFailure(t *testing.T) {
	srv := fakeCompletions(t, `{"confidence":0.5}`, http.StatusOK)
	defer srv.Close()

	_, err := newTestStrategy(srv.URL).Categorize(context.Background(), Request{Merchant: "Shop"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrProvider))
}

func TestOpenAICategorizeHTTPFailure(t *testing.T) {
	srv := fakeCompletions(t, "", http.StatusTooManyRequests)
	defer srv.Close()

	_, err := newTestStrategy(srv.URL).Categorize(context.Background(), Request{Merchant: "Shop"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrProvider))
}
