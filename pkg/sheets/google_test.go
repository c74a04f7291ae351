package sheets

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistant-api/assistant-api/pkg/httpclient"
)

func testCredentials(t *testing.T, tokenURI string) []byte {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keyDER, err := x509.MarshalPKCS8PrivateKey(privateKey)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})

	creds, err := json.Marshal(map[string]string{
		"type":         "service_account",
		"client_email": "sync@test-project.iam.gserviceaccount.com",
		"private_key":  string(keyPEM),
		"token_uri":    tokenURI,
	})
	require.NoError(t, err)
	return creds
}

func TestTokenSourceExchangesAndCaches(t *testing.T) {
	var exchanges atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, jwtBearerGrant, r.Form.Get("grant_type"))
		assert.NotEmpty(t, r.Form.Get("assertion"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok-1","expires_in":3600}`)
	}))
	defer server.Close()

	ts, err := newTokenSource(testCredentials(t, server.URL), server.Client())
	require.NoError(t, err)

	token, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	// Second call reuses the cached token.
	token, err = ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, int32(1), exchanges.Load())
}

func TestTokenSourceRejectsBadCredentials(t *testing.T) {
	_, err := newTokenSource([]byte(`{"client_email":""}`), nil)
	assert.Error(t, err)

	_, err = newTokenSource([]byte(`not json`), nil)
	assert.Error(t, err)
}

func newTestGoogleSheets(t *testing.T, apiHost, tokenURI string) *GoogleSheets {
	t.Helper()
	tokens, err := newTokenSource(testCredentials(t, tokenURI), nil)
	require.NoError(t, err)
	return &GoogleSheets{
		spreadsheetID: "sheet-1",
		host:          apiHost,
		tokens:        tokens,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}),
			httpclient.WithMaxRetries(0),
		),
		sheets: make(map[string]bool),
	}
}

func TestGoogleSheetsReadAndWrite(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"tok-1","expires_in":3600}`)
	})
	var wroteRange string
	mux.HandleFunc("/v4/spreadsheets/sheet-1/values/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodGet:
			fmt.Fprint(w, `{"values":[["user_id","updated_at"],["u42","2025-01-01 00:00:00"]]}`)
		case http.MethodPut:
			var body struct {
				Range  string     `json:"range"`
				Values [][]string `json:"values"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			wroteRange = body.Range
			fmt.Fprint(w, `{}`)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	g := newTestGoogleSheets(t, server.URL, server.URL+"/token")
	g.sheets[WorksheetUserData] = true

	rows, err := g.Read(context.Background(), WorksheetUserData)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "u42", rows[1][0])

	require.NoError(t, g.WriteRow(context.Background(), WorksheetUserData, 2, []string{"u42", "now"}))
	assert.Equal(t, "UserData!A2", wroteRange)
}

func TestGoogleSheetsCreatesMissingWorksheet(t *testing.T) {
	var addedSheet string
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"tok-1","expires_in":3600}`)
	})
	mux.HandleFunc("/v4/spreadsheets/sheet-1/values/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"Unable to parse range: Conversations!A1:Z10000"}}`)
	})
	mux.HandleFunc("/v4/spreadsheets/sheet-1:batchUpdate", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Requests []struct {
				AddSheet struct {
					Properties struct {
						Title string `json:"title"`
					} `json:"properties"`
				} `json:"addSheet"`
			} `json:"requests"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Requests, 1)
		addedSheet = body.Requests[0].AddSheet.Properties.Title
		fmt.Fprint(w, `{}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	g := newTestGoogleSheets(t, server.URL, server.URL+"/token")

	rows, err := g.Read(context.Background(), WorksheetConversations)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, WorksheetConversations, addedSheet)
}

func TestIsMissingWorksheet(t *testing.T) {
	assert.True(t, isMissingWorksheet(fmt.Errorf("sheets API returned status 400: %s",
		`{"error":{"message":"Unable to parse range: UserData!A1"}}`)))
	assert.False(t, isMissingWorksheet(fmt.Errorf("sheets API returned status 403: forbidden")))
}
