package its

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
)

// RESTProvider queries a remote ITS directory over HTTP.
type RESTProvider struct {
	baseURL string
	apiKey  string
	client  *rest.Client
}

func NewRESTProvider(baseURL, apiKey string) *RESTProvider {
	return &RESTProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  rest.DefaultClient,
	}
}

func (p *RESTProvider) Lookup(ctx context.Context, itsID string) (Profile, error) {
	if _, err := parseID(itsID); err != nil {
		return Profile{}, err
	}

	req := rest.Request{
		Method:  rest.Get,
		BaseURL: p.baseURL + "/profiles/" + itsID,
		Headers: map[string]string{
			"Accept":        "application/json",
			"Authorization": "Bearer " + p.apiKey,
		},
	}
	httpReq, err := rest.BuildRequestObject(req)
	if err != nil {
		return Profile{}, errors.Wrap(err, "building ITS request")
	}
	httpRes, err := p.client.MakeRequest(httpReq.WithContext(ctx))
	if err != nil {
		return Profile{}, errors.Wrap(err, "requesting ITS profile")
	}
	resp, err := rest.BuildResponse(httpRes)
	if err != nil {
		return Profile{}, errors.Wrap(err, "reading ITS response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Profile{}, ErrProfileNotFound
	case resp.StatusCode >= http.StatusBadRequest:
		return Profile{}, errors.Errorf("ITS directory responded with status %d", resp.StatusCode)
	}

	var profile Profile
	if err = json.Unmarshal([]byte(resp.Body), &profile); err != nil {
		return Profile{}, errors.Wrap(err, "decoding ITS profile")
	}
	if profile.ITSID == "" {
		profile.ITSID = itsID
	}
	return profile, nil
}
