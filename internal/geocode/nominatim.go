package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yungbote/frontline-backend/internal/pkg/httpx"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

type NominatimConfig struct {
	BaseURL   string
	UserAgent string
	// Interval is the politeness budget between requests.
	Interval time.Duration
	Timeout  time.Duration
}

// Nominatim is the live tier. All calls in the process share one limiter.
type Nominatim struct {
	cfg     NominatimConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

func NewNominatim(baseLog *logger.Logger, cfg NominatimConfig) *Nominatim {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "frontline-backend/1.0"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 1200 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Nominatim{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(cfg.Interval), 1),
		log:     baseLog.With("client", "Nominatim"),
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (n *Nominatim) Geocode(ctx context.Context, query string) (LivePlace, bool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return LivePlace{}, false, nil
	}
	u := strings.TrimRight(n.cfg.BaseURL, "/") + "/search?" + url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}.Encode()

	var results []nominatimResult
	err := httpx.Retry(ctx, httpx.DefaultRetryPolicy, func() error {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", n.cfg.UserAgent)
		req.Header.Set("Accept", "application/json")
		resp, err := n.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if err := httpx.CheckResponse(resp); err != nil {
			return err
		}
		results = nil
		return json.NewDecoder(resp.Body).Decode(&results)
	}, func(err error, wait time.Duration) {
		n.log.Debug("nominatim retry", "query", query, "error", err, "wait", wait.String())
	})
	if err != nil {
		return LivePlace{}, false, fmt.Errorf("nominatim %q: %w", query, err)
	}
	if len(results) == 0 {
		return LivePlace{}, false, nil
	}
	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return LivePlace{}, false, fmt.Errorf("nominatim lat: %w", err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return LivePlace{}, false, fmt.Errorf("nominatim lon: %w", err)
	}
	return LivePlace{Point: Point{Lat: lat, Lng: lng}, DisplayName: results[0].DisplayName}, true, nil
}
