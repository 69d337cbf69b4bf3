package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/wordparty/phraseforge/pkg/phraseforge/config"
	"github.com/wordparty/phraseforge/pkg/phraseforge/dedup"
	"github.com/wordparty/phraseforge/pkg/phraseforge/internalerr"
)

// liveClient talks to the low-latency key-value lookup service. Each
// processor kind is a path under the service root; keys are canonical
// phrase forms.
type liveClient struct {
	baseURL    string
	httpClient *http.Client
}

func newLiveClient(baseURL string) *liveClient {
	return &liveClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}
}

// probe checks service reachability once at startup. Mode selection
// happens here, never at call sites.
func (c *liveClient) probe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *liveClient) get(ctx context.Context, kind, key string, out any) error {
	u := fmt.Sprintf("%s/v1/%s/%s", c.baseURL, kind, url.PathEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: lookup service returned %d", internalerr.ErrStoreUnavailable, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type liveEntities struct{ client *liveClient }

func (l *liveEntities) Lookup(ctx context.Context, text string) (EntitySignal, error) {
	var payload struct {
		Found     bool   `json:"found"`
		Class     string `json:"class"`
		Label     string `json:"label"`
		Sitelinks int    `json:"sitelinks"`
	}
	if err := l.client.get(ctx, "entities", dedup.Canonical(text), &payload); err != nil {
		return EntitySignal{}, err
	}
	if !payload.Found {
		return EntitySignal{Class: EntityNone}, nil
	}
	class := EntityAlias
	if payload.Class == "exact" {
		class = EntityExact
	}
	return EntitySignal{Class: class, Label: payload.Label, Sitelinks: payload.Sitelinks}, nil
}

func (l *liveEntities) Mode() string { return "live" }
func (l *liveEntities) Close() error { return nil }

type liveCooccurrence struct{ client *liveClient }

func (l *liveCooccurrence) PhrasePMI(ctx context.Context, phrase string) (float64, bool, error) {
	var payload struct {
		Found bool    `json:"found"`
		PMI   float64 `json:"pmi"`
	}
	if err := l.client.get(ctx, "cooccurrence", dedup.Canonical(phrase), &payload); err != nil {
		return 0, false, err
	}
	return payload.PMI, payload.Found, nil
}

func (l *liveCooccurrence) Mode() string { return "live" }
func (l *liveCooccurrence) Close() error { return nil }

type liveConcreteness struct{ client *liveClient }

func (l *liveConcreteness) Rating(ctx context.Context, word string) (float64, bool, error) {
	var payload struct {
		Found  bool    `json:"found"`
		Rating float64 `json:"rating"`
	}
	if err := l.client.get(ctx, "concreteness", dedup.Canonical(word), &payload); err != nil {
		return 0, false, err
	}
	return payload.Rating, payload.Found, nil
}

func (l *liveConcreteness) Mode() string { return "live" }
func (l *liveConcreteness) Close() error { return nil }

type liveProminence struct{ client *liveClient }

func (l *liveProminence) Pageviews(ctx context.Context, phrase string) (int64, bool, error) {
	var payload struct {
		Found bool  `json:"found"`
		Views int64 `json:"views"`
	}
	if err := l.client.get(ctx, "prominence", dedup.Canonical(phrase), &payload); err != nil {
		return 0, false, err
	}
	return payload.Views, payload.Found, nil
}

func (l *liveProminence) Mode() string { return "live" }
func (l *liveProminence) Close() error { return nil }

// OpenEntities selects live mode when the service is configured and
// reachable, otherwise loads the snapshot.
func OpenEntities(cfg config.Lookup) (Entities, error) {
	if cfg.LiveURL != "" {
		client := newLiveClient(cfg.LiveURL)
		if client.probe() {
			log.Printf("lookup: entities using live service at %s", cfg.LiveURL)
			return &liveEntities{client: client}, nil
		}
		log.Printf("lookup: entities live service at %s unreachable, falling back to snapshot", cfg.LiveURL)
	}
	if cfg.SnapshotPath == "" {
		return nil, fmt.Errorf("%w: entities lookup has no live service and no snapshot", internalerr.ErrInvalidConfig)
	}
	ents, err := LoadEntitiesSnapshot(cfg.SnapshotPath)
	if err != nil {
		return nil, err
	}
	log.Printf("lookup: entities using snapshot %s", cfg.SnapshotPath)
	return ents, nil
}

// OpenCooccurrence selects live mode when reachable, otherwise loads
// the snapshot.
func OpenCooccurrence(cfg config.Lookup) (Cooccurrence, error) {
	if cfg.LiveURL != "" {
		client := newLiveClient(cfg.LiveURL)
		if client.probe() {
			log.Printf("lookup: cooccurrence using live service at %s", cfg.LiveURL)
			return &liveCooccurrence{client: client}, nil
		}
		log.Printf("lookup: cooccurrence live service at %s unreachable, falling back to snapshot", cfg.LiveURL)
	}
	if cfg.SnapshotPath == "" {
		return nil, fmt.Errorf("%w: cooccurrence lookup has no live service and no snapshot", internalerr.ErrInvalidConfig)
	}
	cooc, err := LoadCooccurrenceSnapshot(cfg.SnapshotPath)
	if err != nil {
		return nil, err
	}
	log.Printf("lookup: cooccurrence using snapshot %s", cfg.SnapshotPath)
	return cooc, nil
}

// OpenConcreteness selects live mode when reachable, otherwise loads
// the snapshot.
func OpenConcreteness(cfg config.Lookup) (Concreteness, error) {
	if cfg.LiveURL != "" {
		client := newLiveClient(cfg.LiveURL)
		if client.probe() {
			log.Printf("lookup: concreteness using live service at %s", cfg.LiveURL)
			return &liveConcreteness{client: client}, nil
		}
		log.Printf("lookup: concreteness live service at %s unreachable, falling back to snapshot", cfg.LiveURL)
	}
	if cfg.SnapshotPath == "" {
		return nil, fmt.Errorf("%w: concreteness lookup has no live service and no snapshot", internalerr.ErrInvalidConfig)
	}
	conc, err := LoadConcretenessSnapshot(cfg.SnapshotPath)
	if err != nil {
		return nil, err
	}
	log.Printf("lookup: concreteness using snapshot %s", cfg.SnapshotPath)
	return conc, nil
}

// OpenProminence selects live mode when reachable, otherwise loads the
// snapshot. Prominence is optional; both fields empty yields nil.
func OpenProminence(cfg config.Lookup) (Prominence, error) {
	if cfg.LiveURL != "" {
		client := newLiveClient(cfg.LiveURL)
		if client.probe() {
			log.Printf("lookup: prominence using live service at %s", cfg.LiveURL)
			return &liveProminence{client: client}, nil
		}
		log.Printf("lookup: prominence live service at %s unreachable, falling back to snapshot", cfg.LiveURL)
	}
	if cfg.SnapshotPath == "" {
		return nil, nil
	}
	prom, err := LoadProminenceSnapshot(cfg.SnapshotPath)
	if err != nil {
		return nil, err
	}
	log.Printf("lookup: prominence using snapshot %s", cfg.SnapshotPath)
	return prom, nil
}
