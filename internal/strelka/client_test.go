package strelka

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUpstream(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL+"/api/cards/status/", "", time.Second)
}

func TestFetchSendsCardParams(t *testing.T) {
	var gotPath, gotCard, gotType string
	c := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCard = r.URL.Query().Get("cardnum")
		gotType = r.URL.Query().Get("cardtypeid")
		fmt.Fprint(w, `{"balance":100}`)
	})

	_, err := c.Fetch(context.Background(), "02300012345678")
	require.NoError(t, err)
	assert.Equal(t, "/api/cards/status/", gotPath)
	assert.Equal(t, "02300012345678", gotCard)
	assert.Equal(t, DefaultCardTypeID, gotType)
}

func TestFetchParsesCard(t *testing.T) {
	c := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"balance":12345,"cardactive":true,"cardblocked":false,"numoftrips":7,"status":"active"}`)
	})

	st, err := c.Fetch(context.Background(), "1")
	require.NoError(t, err)

	rub, ok := st.Rubles()
	require.True(t, ok)
	assert.Equal(t, "123.45", rub.StringFixed(2))
	require.NotNil(t, st.Active)
	assert.True(t, *st.Active)
	require.NotNil(t, st.Blocked)
	assert.False(t, *st.Blocked)
	require.NotNil(t, st.Trips)
	assert.Equal(t, "7", *st.Trips)
	assert.Equal(t, "active", st.State)

	text := st.Format()
	assert.Contains(t, text, "Баланс: 123.45 руб. (12345 коп.)")
	assert.Contains(t, text, "Статус: active")
	assert.Contains(t, text, "Карта активна: да")
	assert.Contains(t, text, "Карта заблокирована: нет")
	assert.Contains(t, text, "Поездок: 7")
}

func TestFetchNestedCard(t *testing.T) {
	c := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"card":{"balance":5000,"cardactive":1}}`)
	})

	st, err := c.Fetch(context.Background(), "1")
	require.NoError(t, err)
	assert.Contains(t, st.Format(), "Баланс: 50.00 руб. (5000 коп.)")
	assert.Contains(t, st.Format(), "Карта активна: да")
}

func TestFetchNonNumericBalance(t *testing.T) {
	c := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"balance":"n/a"}`)
	})

	st, err := c.Fetch(context.Background(), "1")
	require.NoError(t, err)
	assert.Contains(t, st.Format(), "Баланс: n/a")
}

func TestFetchNoKnownFields(t *testing.T) {
	c := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"foo":"bar"}`)
	})

	st, err := c.Fetch(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, st.Empty())
	assert.Contains(t, st.Format(), "API не вернуло ожидаемые поля")
}

func TestFetchAPIError(t *testing.T) {
	c := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"card not found"}`)
	})

	_, err := c.Fetch(context.Background(), "1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "card not found", apiErr.Message)
	assert.NotErrorIs(t, err, ErrLookupFailed)
}

func TestFetchFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"not found": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
		"html body": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html><body>maintenance</body></html>`)
		},
		"json array": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[1,2,3]`)
		},
		"json null": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `null`)
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			c := newUpstream(t, h)
			_, err := c.Fetch(context.Background(), "1")
			require.ErrorIs(t, err, ErrLookupFailed)
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	c := NewClient(ts.URL, "", 50*time.Millisecond)
	start := time.Now()
	_, err := c.Fetch(context.Background(), "1")
	require.ErrorIs(t, err, ErrLookupFailed)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFetchContextCanceled(t *testing.T) {
	c := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"balance":1}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, "1")
	require.ErrorIs(t, err, ErrLookupFailed)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("", "", 0)
	assert.Equal(t, DefaultStatusURL, c.StatusURL)
	assert.Equal(t, DefaultCardTypeID, c.CardTypeID)
	assert.Equal(t, DefaultTimeout, c.HTTP.Timeout)
}

func TestFetchFractionalKopecks(t *testing.T) {
	c := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"active","balance":123.45}`)
	})

	st, err := c.Fetch(context.Background(), "1")
	require.NoError(t, err)

	text := st.Format()
	assert.Contains(t, text, "Баланс: 1.2345 руб. (123.45 коп.)")
	assert.Contains(t, text, "Статус: active")
}

func TestFormatBalancePadding(t *testing.T) {
	cases := map[string]string{
		`{"balance":0}`:     "Баланс: 0.00 руб. (0 коп.)",
		`{"balance":120}`:   "Баланс: 1.20 руб. (120 коп.)",
		`{"balance":12345}`: "Баланс: 123.45 руб. (12345 коп.)",
		`{"balance":100.5}`: "Баланс: 1.005 руб. (100.5 коп.)",
		`{"balance":-250}`:  "Баланс: -2.50 руб. (-250 коп.)",
	}
	for body, want := range cases {
		t.Run(body, func(t *testing.T) {
			c := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			})
			st, err := c.Fetch(context.Background(), "1")
			require.NoError(t, err)
			assert.Contains(t, st.Format(), want)
		})
	}
}
