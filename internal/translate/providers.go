package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Provider turns arbitrary source text into English. Implementations are
// best effort: an error or empty result just moves the pipeline on to the
// next provider.
type Provider interface {
	Name() string
	TranslateToEnglish(ctx context.Context, text string) (string, error)
}

const providerTimeout = 7 * time.Second

// LibreProvider talks to a LibreTranslate-compatible endpoint. It detects
// the source language first (best effort) and short-circuits when the text
// is already English. Requests go out as JSON and retry form-encoded, since
// public instances disagree about which they accept.
type LibreProvider struct {
	Base   string
	Client *http.Client
}

func NewLibreProvider(base string) *LibreProvider {
	return &LibreProvider{
		Base:   strings.TrimRight(base, "/"),
		Client: &http.Client{Timeout: providerTimeout},
	}
}

func (p *LibreProvider) Name() string { return "libre:" + p.Base }

func (p *LibreProvider) TranslateToEnglish(ctx context.Context, text string) (string, error) {
	source := p.detect(ctx, text)
	if source == "en" {
		return text, nil
	}

	body := map[string]string{"q": text, "source": source, "target": "en", "format": "text"}
	data, err := p.postJSON(ctx, p.Base+"/translate", body)
	if err != nil {
		form := url.Values{"q": {text}, "source": {source}, "target": {"en"}, "format": {"text"}}
		data, err = p.postForm(ctx, p.Base+"/translate", form)
		if err != nil {
			return "", err
		}
	}

	var single struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.Unmarshal(data, &single); err == nil && single.TranslatedText != "" {
		return single.TranslatedText, nil
	}
	var list []struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.Unmarshal(data, &list); err == nil && len(list) > 0 {
		return list[0].TranslatedText, nil
	}
	return "", fmt.Errorf("no translation in response from %s", p.Base)
}

// detect returns the detected language code, or "auto" when detection
// fails in any way.
func (p *LibreProvider) detect(ctx context.Context, text string) string {
	data, err := p.postJSON(ctx, p.Base+"/detect", map[string]string{"q": text})
	if err != nil {
		data, err = p.postForm(ctx, p.Base+"/detect", url.Values{"q": {text}})
		if err != nil {
			return "auto"
		}
	}

	var list []struct {
		Language string `json:"language"`
	}
	if err := json.Unmarshal(data, &list); err == nil && len(list) > 0 && list[0].Language != "" {
		return list[0].Language
	}
	var single struct {
		Language string `json:"language"`
	}
	if err := json.Unmarshal(data, &single); err == nil && single.Language != "" {
		return single.Language
	}
	return "auto"
}

func (p *LibreProvider) postJSON(ctx context.Context, endpoint string, body interface{}) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return p.do(req)
}

func (p *LibreProvider) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return p.do(req)
}

func (p *LibreProvider) do(req *http.Request) ([]byte, error) {
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d", req.URL.Host, resp.StatusCode)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MyMemoryProvider queries the MyMemory translation API.
type MyMemoryProvider struct {
	Endpoint string
	Client   *http.Client
}

func NewMyMemoryProvider(endpoint string) *MyMemoryProvider {
	return &MyMemoryProvider{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: providerTimeout},
	}
}

func (p *MyMemoryProvider) Name() string { return "mymemory" }

func (p *MyMemoryProvider) TranslateToEnglish(ctx context.Context, text string) (string, error) {
	q := url.Values{"q": {text}, "langpair": {"auto|en"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mymemory returned %d", resp.StatusCode)
	}

	var out struct {
		ResponseData struct {
			TranslatedText string `json:"translatedText"`
		} `json:"responseData"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.ResponseData.TranslatedText == "" {
		return "", fmt.Errorf("mymemory returned no translation")
	}
	return out.ResponseData.TranslatedText, nil
}
