package emailsvc

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umoorsehhat/sehhat/core"
)

type sendgridPayload struct {
	Personalizations []struct {
		To         []struct{ Email string } `json:"to"`
		Subject    string                   `json:"subject"`
		CustomArgs map[string]string        `json:"custom_args"`
	} `json:"personalizations"`
	Categories []string `json:"categories"`
	Content    []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
}

func TestSendgridService_sendMessage(t *testing.T) {
	var (
		hits    int
		payload sendgridPayload
		status  = http.StatusAccepted
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, endpoint, r.URL.Path)
		assert.Equal(t, "Bearer SG.test", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		payload = sendgridPayload{}
		assert.NoError(t, json.Unmarshal(body, &payload))
		w.WriteHeader(status)
	}))
	defer srv.Close()
	origHost := host
	host = srv.URL
	defer func() { host = origHost }()

	conf := &core.Config{AppName: "Umoor Sehhat", SendgridApiKey: "SG.test", FrontendBaseURL: "https://sehhat.test"}
	logger := new(recordingLogger)
	svc := NewSendgridService(conf, logger)

	t.Run("categories", func(t *testing.T) {
		svc.sendMessage(&core.EmailMessage{
			To:           []mail.Address{{Name: "Ali", Address: "ali@sehhat.test"}},
			Subject:      "Petition updated",
			TemplateName: "notification",
			Categories:   []string{"notification", "status"},
			TemplateData: map[string]string{"Name": "Ali", "Title": "Petition updated", "Message": "Resolved", "Link": "petitions/1"},
		})

		require.Equal(t, 1, hits)
		assert.Equal(t, []string{"notification", "status"}, payload.Categories)
		require.Len(t, payload.Personalizations, 1)
		assert.Equal(t, "[Umoor Sehhat] Petition updated", payload.Personalizations[0].Subject)
		assert.Equal(t, "notification", payload.Personalizations[0].CustomArgs["template"])
		require.Len(t, payload.Content, 2)
		assert.Contains(t, payload.Content[0].Value, "https://sehhat.test/petitions/1")
		assert.Empty(t, logger.lines)
	})

	t.Run("plain body", func(t *testing.T) {
		svc.sendMessage(&core.EmailMessage{To: []mail.Address{{Address: "ali@sehhat.test"}}, Subject: "Hi", BodyStr: "Salaam"})

		require.Equal(t, 2, hits)
		require.Len(t, payload.Content, 1, "no empty html part")
		assert.Equal(t, "text/plain", payload.Content[0].Type)
		assert.Empty(t, payload.Categories)
	})

	t.Run("undeliverable", func(t *testing.T) {
		svc.sendMessage(&core.EmailMessage{Subject: "Nobody", BodyStr: "Salaam"})
		svc.sendMessage(&core.EmailMessage{To: []mail.Address{{Address: "ali@sehhat.test"}}, Subject: "Nothing"})

		assert.Equal(t, 2, hits, "nothing sent")
		require.Len(t, logger.lines, 2)
		for _, l := range logger.lines {
			assert.Equal(t, "warn", l.level)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		status = http.StatusBadRequest
		logger.lines = nil
		svc.sendMessage(&core.EmailMessage{To: []mail.Address{{Address: "ali@sehhat.test"}}, Subject: "Hi", BodyStr: "Salaam"})

		require.Len(t, logger.lines, 1)
		assert.Equal(t, "error", logger.lines[0].level)
	})
}
