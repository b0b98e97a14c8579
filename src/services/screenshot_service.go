package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/username/tradeanalytics/backend/src/logger"
	"github.com/username/tradeanalytics/backend/src/models"
)

// screenshotUpdateRetries bounds optimistic-concurrency retries when two
// requests touch the same trade's attachment list at once.
const screenshotUpdateRetries = 3

var ErrScreenshotNotFound = errors.New("screenshot not found for this trade")

type screenshotServiceImpl struct {
	db        *sql.DB
	imageHost ImageHostService
}

func NewScreenshotService(db *sql.DB, imageHost ImageHostService) ScreenshotService {
	return &screenshotServiceImpl{
		db:        db,
		imageHost: imageHost,
	}
}

// loadScreenshots reads a trade's attachment list and its version counter,
// verifying ownership at the same time.
func (s *screenshotServiceImpl) loadScreenshots(table string, userID, tradeID int64) ([]string, string, int64, error) {
	var raw, symbol string
	var version int64
	err := s.db.QueryRow(`SELECT COALESCE(screenshots, ''), symbol, screenshots_version FROM `+table+` WHERE id = ? AND user_id = ?`,
		tradeID, userID).Scan(&raw, &symbol, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", 0, ErrTradeNotFound
	}
	if err != nil {
		return nil, "", 0, err
	}
	return models.UnmarshalScreenshots(raw), symbol, version, nil
}

// storeScreenshots writes the list back only if nobody bumped the version
// in between. Returns ErrConcurrentUpdate when the guard fails.
func (s *screenshotServiceImpl) storeScreenshots(table string, userID, tradeID, expectedVersion int64, urls []string) error {
	raw, err := models.MarshalScreenshots(urls)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`
		UPDATE `+table+`
		SET screenshots = ?, screenshots_version = screenshots_version + 1
		WHERE id = ? AND user_id = ? AND screenshots_version = ?`,
		raw, tradeID, userID, expectedVersion)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

// mutate applies fn to the current attachment list under the version guard,
// retrying a few times on concurrent modification.
func (s *screenshotServiceImpl) mutate(ledger Ledger, userID, tradeID int64, fn func([]string) ([]string, error)) (*ScreenshotState, error) {
	table, err := ledgerTable(ledger)
	if err != nil {
		return nil, err
	}
	for attempt := 0; attempt < screenshotUpdateRetries; attempt++ {
		urls, symbol, version, err := s.loadScreenshots(table, userID, tradeID)
		if err != nil {
			return nil, err
		}
		updated, err := fn(urls)
		if err != nil {
			return nil, err
		}
		err = s.storeScreenshots(table, userID, tradeID, version, updated)
		if err == nil {
			return &ScreenshotState{TradeID: tradeID, Symbol: symbol, Screenshots: updated}, nil
		}
		if !errors.Is(err, ErrConcurrentUpdate) {
			return nil, err
		}
		logger.L.Debug("screenshot update raced, retrying", "tradeID", tradeID, "attempt", attempt+1)
	}
	return nil, ErrConcurrentUpdate
}

// AttachScreenshot verifies trade ownership, uploads the image, and links
// the hosted URL to the trade. If linking ultimately fails, the uploaded
// asset is destroyed so the host does not accumulate orphans.
func (s *screenshotServiceImpl) AttachScreenshot(ctx context.Context, userID, tradeID int64, ledger Ledger, file io.Reader, filename string) (*ScreenshotState, error) {
	table, err := ledgerTable(ledger)
	if err != nil {
		return nil, err
	}
	// Ownership check before paying for an upload.
	if _, _, _, err := s.loadScreenshots(table, userID, tradeID); err != nil {
		return nil, err
	}

	shot, err := s.imageHost.Upload(ctx, file, userID, tradeID)
	if err != nil {
		return nil, err
	}

	state, err := s.mutate(ledger, userID, tradeID, func(urls []string) ([]string, error) {
		return append(urls, shot.URL), nil
	})
	if err != nil {
		s.destroyBestEffort(ctx, shot.PublicID)
		return nil, err
	}
	return state, nil
}

// RemoveScreenshot deletes the hosted asset best effort and then unlinks
// the URL. A host failure is logged, never escalated: the local reference
// is removed regardless.
func (s *screenshotServiceImpl) RemoveScreenshot(ctx context.Context, userID, tradeID int64, ledger Ledger, screenshotURL string) (*ScreenshotState, error) {
	table, err := ledgerTable(ledger)
	if err != nil {
		return nil, err
	}
	urls, _, _, err := s.loadScreenshots(table, userID, tradeID)
	if err != nil {
		return nil, err
	}
	if !contains(urls, screenshotURL) {
		return nil, ErrScreenshotNotFound
	}

	if publicID, ok := s.imageHost.PublicIDFromURL(screenshotURL); ok {
		s.destroyBestEffort(ctx, publicID)
	}

	return s.mutate(ledger, userID, tradeID, func(current []string) ([]string, error) {
		kept := make([]string, 0, len(current))
		for _, url := range current {
			if url != screenshotURL {
				kept = append(kept, url)
			}
		}
		return kept, nil
	})
}

// resolveTicket maps a broker ticket to its row id, checking ownership.
func (s *screenshotServiceImpl) resolveTicket(userID int64, ticket string) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM api_trades WHERE ticket = ? AND user_id = ?`, ticket, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrTradeNotFound
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AttachScreenshotByTicket is AttachScreenshot for the broker ledger,
// addressed by ticket the way the MT5 bridge and its clients identify rows.
func (s *screenshotServiceImpl) AttachScreenshotByTicket(ctx context.Context, userID int64, ticket string, file io.Reader, filename string) (*ScreenshotState, error) {
	tradeID, err := s.resolveTicket(userID, ticket)
	if err != nil {
		return nil, err
	}
	state, err := s.AttachScreenshot(ctx, userID, tradeID, LedgerBroker, file, filename)
	if err != nil {
		return nil, err
	}
	state.Ticket = ticket
	return state, nil
}

// RemoveScreenshotByTicket is RemoveScreenshot for the broker ledger.
func (s *screenshotServiceImpl) RemoveScreenshotByTicket(ctx context.Context, userID int64, ticket, screenshotURL string) (*ScreenshotState, error) {
	tradeID, err := s.resolveTicket(userID, ticket)
	if err != nil {
		return nil, err
	}
	state, err := s.RemoveScreenshot(ctx, userID, tradeID, LedgerBroker, screenshotURL)
	if err != nil {
		return nil, err
	}
	state.Ticket = ticket
	return state, nil
}

// UpdateScreenshots applies a bulk mutation to the attachment list. Unlike
// RemoveScreenshot it never touches the image host; callers use it to
// reorder or re-point references.
func (s *screenshotServiceImpl) UpdateScreenshots(ctx context.Context, userID, tradeID int64, ledger Ledger, action ScreenshotAction, urls []string) (*ScreenshotState, error) {
	switch action {
	case ScreenshotAdd:
		if len(urls) == 0 {
			return nil, fmt.Errorf("%w: no screenshots provided for add", ErrValidationFailed)
		}
		return s.mutate(ledger, userID, tradeID, func(current []string) ([]string, error) {
			return append(current, urls...), nil
		})
	case ScreenshotReplace:
		if len(urls) == 0 {
			return nil, fmt.Errorf("%w: no screenshots provided for replace", ErrValidationFailed)
		}
		return s.mutate(ledger, userID, tradeID, func([]string) ([]string, error) {
			return urls, nil
		})
	case ScreenshotDelete:
		if len(urls) == 0 {
			return nil, fmt.Errorf("%w: no screenshots provided for delete", ErrValidationFailed)
		}
		drop := make(map[string]bool, len(urls))
		for _, url := range urls {
			drop[url] = true
		}
		return s.mutate(ledger, userID, tradeID, func(current []string) ([]string, error) {
			kept := make([]string, 0, len(current))
			for _, url := range current {
				if !drop[url] {
					kept = append(kept, url)
				}
			}
			return kept, nil
		})
	case ScreenshotClear:
		return s.mutate(ledger, userID, tradeID, func([]string) ([]string, error) {
			return []string{}, nil
		})
	default:
		return nil, fmt.Errorf("%w: invalid action %q", ErrValidationFailed, action)
	}
}

func (s *screenshotServiceImpl) destroyBestEffort(ctx context.Context, publicID string) {
	if err := s.imageHost.Destroy(ctx, publicID); err != nil {
		logger.L.Warn("failed to destroy hosted screenshot", "publicID", publicID, "error", err)
	}
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}
