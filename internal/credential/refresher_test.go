package credential

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricofy/translation-gateway/internal/domain"
)

type fakeSender struct {
	mu    sync.Mutex
	pages map[string]domain.RawResponse
	errs  map[string][]error
	hits  map[string]int
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		pages: make(map[string]domain.RawResponse),
		errs:  make(map[string][]error),
		hits:  make(map[string]int),
	}
}

func (s *fakeSender) page(url, body string) {
	s.pages[url] = domain.RawResponse{Status: 200, Body: []byte(body)}
}

func (s *fakeSender) Send(ctx context.Context, req domain.WireRequest) (domain.RawResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hits[req.URL]++
	if queued := s.errs[req.URL]; len(queued) > 0 {
		s.errs[req.URL] = queued[1:]
		return domain.RawResponse{}, queued[0]
	}
	if resp, ok := s.pages[req.URL]; ok {
		return resp, nil
	}
	return domain.RawResponse{Status: 404}, nil
}

var bingFields = []Field{
	{Name: "signId", Pattern: regexp.MustCompile(`params_AbusePreventionHelper\s*=\s*\[(\d+),`)},
	{Name: "appId", Pattern: regexp.MustCompile(`params_AbusePreventionHelper\s*=\s*\[\d+,"([^"]+)"`)},
}

func TestPageMinter_ExtractFields(t *testing.T) {
	s := newFakeSender()
	s.page("https://www.bing.com/translator", `var params_AbusePreventionHelper = [1700000000000,"tok-123",3600000];`)

	m := NewPageMinter(s)
	got, err := m.ExtractFields(context.Background(), "https://www.bing.com/translator", bingFields)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"signId": "1700000000000", "appId": "tok-123"}, got)
}

func TestPageMinter_MissingSecondaryField(t *testing.T) {
	s := newFakeSender()
	s.page("https://translate.yandex.com/", `SID: 'abc.def',`)

	fields := []Field{
		{Name: "signId", Pattern: regexp.MustCompile(`Ya\.reqid\s*=\s*'([^']+)'`)},
		{Name: "appId", Pattern: regexp.MustCompile(`SID:\s*'([^']+)'`)},
	}
	m := NewPageMinter(s)
	got, err := m.ExtractFields(context.Background(), "https://translate.yandex.com/", fields)
	require.NoError(t, err)
	assert.Equal(t, "abc.def", got["appId"])
	assert.NotContains(t, got, "signId")
}

func TestPageMinter_MissingPrimaryField(t *testing.T) {
	s := newFakeSender()
	var redirected string
	s.page("https://www.bing.com/translator", `<script>location.href='https://www.bing.com/challenge'</script>`)

	m := NewPageMinter(s, WithRedirectHandler(func(url string) { redirected = url }))
	_, err := m.ExtractFields(context.Background(), "https://www.bing.com/translator", bingFields)
	assert.ErrorIs(t, err, ErrFieldNotFound)
	assert.Equal(t, "https://www.bing.com/challenge", redirected)
}

func TestPageMinter_RetriesTransientFailures(t *testing.T) {
	s := newFakeSender()
	s.page("https://fanyi.baidu.com/", `token: 'tk'`)
	s.errs["https://fanyi.baidu.com/"] = []error{errors.New("connection reset")}

	m := NewPageMinter(s, WithFetchAttempts(3))
	got, err := m.ExtractFields(context.Background(), "https://fanyi.baidu.com/", []Field{
		{Name: "appId", Pattern: regexp.MustCompile(`token:\s*'([^']+)'`)},
	})
	require.NoError(t, err)
	assert.Equal(t, "tk", got["appId"])
	assert.Equal(t, 2, s.hits["https://fanyi.baidu.com/"])
}

func TestPageMinter_ClientErrorNotRetried(t *testing.T) {
	s := newFakeSender()
	m := NewPageMinter(s, WithFetchAttempts(3))

	err := m.OpenEphemeralPage(context.Background(), "https://missing.example/")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 404, se.Status)
	assert.Equal(t, 1, s.hits["https://missing.example/"])
}

type fakeMinter struct {
	opened []string
	pages  map[string]map[string]string
	err    error
}

func (m *fakeMinter) OpenEphemeralPage(ctx context.Context, url string) error {
	m.opened = append(m.opened, url)
	return nil
}

func (m *fakeMinter) ExtractFields(ctx context.Context, pageURL string, fields []Field) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]string)
	for _, f := range fields {
		if v, ok := m.pages[pageURL][f.Name]; ok {
			out[f.Name] = v
		}
	}
	return out, nil
}

func TestSpecRefresher_Refresh(t *testing.T) {
	m := &fakeMinter{pages: map[string]map[string]string{
		"https://fanyi.baidu.com/": {"signId": "320305.131321201", "appId": "tok"},
	}}
	r := NewSpecRefresher(m, map[string]Spec{
		"baidu": {
			CookieURL: "https://fanyi.baidu.com/",
			SourceURL: "https://fanyi.baidu.com/",
			Fields: []Field{
				{Name: "signId", Pattern: regexp.MustCompile(`window\.gtk\s*=\s*'([^']+)'`)},
				{Name: "appId", Pattern: regexp.MustCompile(`token:\s*'([^']+)'`)},
			},
		},
	})

	got, err := r.Refresh(context.Background(), "baidu")
	require.NoError(t, err)
	assert.Equal(t, "tok", got["appId"])
	assert.Equal(t, []string{"https://fanyi.baidu.com/"}, m.opened)
}

func TestSpecRefresher_Discover(t *testing.T) {
	m := &fakeMinter{pages: map[string]map[string]string{
		"https://papago.naver.com/":                   {"source": "/home.91a2.chunk.js"},
		"https://papago.naver.com/home.91a2.chunk.js": {"appId": "v1.7.1_12f919c9b5"},
	}}
	r := NewSpecRefresher(m, map[string]Spec{
		"papago": {
			SourceURL: "https://papago.naver.com/",
			Discover:  regexp.MustCompile(`"([^"]*home\.[^"]+\.js)"`),
			Fields:    []Field{{Name: "appId", Pattern: regexp.MustCompile(`AUTH_KEY:\s*'([^']+)'`)}},
		},
	})

	got, err := r.Refresh(context.Background(), "papago")
	require.NoError(t, err)
	assert.Equal(t, "v1.7.1_12f919c9b5", got["appId"])
	assert.Empty(t, m.opened)
}

func TestSpecRefresher_Errors(t *testing.T) {
	r := NewSpecRefresher(&fakeMinter{}, map[string]Spec{
		"lingvanex": {
			SourceURL: "https://lingvanex.com/",
			Fields:    []Field{{Name: "appId", Pattern: regexp.MustCompile(`B2B_AUTH_TOKEN="([^"]+)"`)}},
		},
	})

	_, err := r.Refresh(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrUnknownBackend)

	_, err = r.Refresh(context.Background(), "lingvanex")
	assert.ErrorIs(t, err, ErrFieldNotFound)
}
