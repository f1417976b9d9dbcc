package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"whalewatch-backend/middlewares"
	"whalewatch-backend/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EnrichmentClient fetches balance and guardian-score blobs for watched
// wallets from the external scoring service. The registry only stores the
// blobs; refreshing them is fire-and-forget and never blocks a mutation.
type EnrichmentClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

// WalletFacts is the scoring service's response for one (address, network).
type WalletFacts struct {
	BalanceCache   json.RawMessage `json:"balance_cache"`
	GuardianScores json.RawMessage `json:"guardian_scores"`
}

func NewEnrichmentClient(db *gorm.DB) *EnrichmentClient {
	return &EnrichmentClient{
		BaseURL: os.Getenv("ENRICHMENT_SERVICE_URL"),
		Token:   os.Getenv("ENRICHMENT_SERVICE_TOKEN"),
		DB:      db,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Enabled reports whether an enrichment backend is configured at all.
func (c *EnrichmentClient) Enabled() bool {
	return c.BaseURL != ""
}

func (c *EnrichmentClient) FetchWalletFacts(ctx context.Context, address, network string) (*WalletFacts, error) {
	u, err := url.Parse(fmt.Sprintf("%s/api/v1/wallet-facts", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	q := u.Query()
	q.Set("address", address)
	q.Set("network", network)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.Token != "" {
		req.Header.Set("X-Service-Token", c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call enrichment service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("enrichment service returned status %d: %s", resp.StatusCode, string(body))
	}

	var facts WalletFacts
	if err := json.NewDecoder(resp.Body).Decode(&facts); err != nil {
		return nil, fmt.Errorf("failed to decode enrichment response: %w", err)
	}
	return &facts, nil
}

// RefreshWallet updates one wallet's cached blobs. Errors are returned for
// logging only; callers never fail a registry operation on them.
func (c *EnrichmentClient) RefreshWallet(ctx context.Context, walletID string) error {
	var wallet models.Wallet
	if err := c.DB.First(&wallet, "id = ?", walletID).Error; err != nil {
		return err
	}

	facts, err := c.FetchWalletFacts(ctx, wallet.Address, wallet.ChainNamespace)
	if err != nil {
		return err
	}

	return c.DB.Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(map[string]any{
			"balance_cache":   datatypes.JSON(facts.BalanceCache),
			"guardian_scores": datatypes.JSON(facts.GuardianScores),
		}).Error
}

// KickWallet refreshes a freshly added wallet in the background.
func (c *EnrichmentClient) KickWallet(walletID string) {
	if !c.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.RefreshWallet(ctx, walletID); err != nil {
			log.Printf("enrichment kick failed for wallet %s: %v", walletID, err)
		}
	}()
}

// RefreshStale re-fetches blobs for the wallets that have gone the longest
// without an update, a batch at a time.
func (c *EnrichmentClient) RefreshStale(ctx context.Context, olderThan time.Duration, batch int) {
	var wallets []models.Wallet
	cutoff := time.Now().UTC().Add(-olderThan)
	err := c.DB.Where("updated_at < ?", cutoff).
		Order("updated_at ASC").
		Limit(batch).
		Find(&wallets).Error
	if err != nil {
		log.Printf("enrichment stale query failed: %v", err)
		return
	}

	for _, w := range wallets {
		if ctx.Err() != nil {
			return
		}
		if err := c.RefreshWallet(ctx, w.Id); err != nil {
			log.Printf("enrichment refresh failed for wallet %s: %v", w.Id, err)
		}
	}
}

// StartScheduler runs the periodic jobs: stale enrichment refresh and
// idempotency-key purging. Stops when ctx is cancelled.
func StartScheduler(ctx context.Context, db *gorm.DB, client *EnrichmentClient) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("scheduler init failed: %v", err)
		return
	}
	sched.Start()

	if client.Enabled() {
		_, _ = sched.NewJob(
			gocron.DurationJob(5*time.Minute),
			gocron.NewTask(func() {
				jobCtx, cancel := context.WithTimeout(ctx, 4*time.Minute)
				defer cancel()
				client.RefreshStale(jobCtx, 15*time.Minute, 50)
			}),
		)
	} else {
		log.Println("ENRICHMENT_SERVICE_URL not set, enrichment refresh disabled")
	}

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			if n, err := middlewares.PurgeExpiredIdempotencyKeys(db); err != nil {
				log.Printf("idempotency purge failed: %v", err)
			} else if n > 0 {
				log.Printf("purged %d expired idempotency key(s)", n)
			}
		}),
	)

	go func() {
		<-ctx.Done()
		_ = sched.Shutdown()
	}()
}
