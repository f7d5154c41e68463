// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package psn

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tomtom215/trophytrack/internal/logging"
	"github.com/tomtom215/trophytrack/internal/metrics"
)

// Adapter exposes the upstream trophy service as typed operations on
// canonical records. All schema defensiveness lives below this line;
// callers see canonical records and taxonomy errors only.
type Adapter struct {
	client   *Client
	pageSize int
}

// NewAdapter creates an Adapter. pageSize bounds how many titles are
// requested per list call.
func NewAdapter(client *Client, pageSize int) *Adapter {
	return &Adapter{client: client, pageSize: pageSize}
}

// TitlesPage is one page of an account's title list. Dropped counts
// entries skipped for unrecognized shape.
type TitlesPage struct {
	Titles     []TitleSummary
	Dropped    int
	NextOffset int
	Done       bool
}

// ValidateAccount checks an account against the upstream service.
// A private profile (403) is a successful validation with Public
// false, not an error: the account exists, its data is just hidden.
func (a *Adapter) ValidateAccount(ctx context.Context, cred AccessCredential, accountID string) (AccountSummary, error) {
	p, err := a.client.get(ctx, cred, "trophySummary",
		fmt.Sprintf("/v1/users/%s/trophySummary", url.PathEscape(accountID)), nil)
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			metrics.IdentityValidationsTotal.WithLabelValues("private").Inc()
			return AccountSummary{AccountID: accountID, Public: false}, nil
		}
		if errors.Is(err, ErrNotFound) {
			metrics.IdentityValidationsTotal.WithLabelValues("not_found").Inc()
		} else {
			metrics.IdentityValidationsTotal.WithLabelValues("error").Inc()
		}
		return AccountSummary{}, err
	}
	metrics.IdentityValidationsTotal.WithLabelValues("valid").Inc()
	return normalizeAccount(p, accountID), nil
}

// ListTitles fetches one page of the account's titles starting at
// offset. Entries without an external title ID are dropped and counted,
// never failing the page.
func (a *Adapter) ListTitles(ctx context.Context, cred AccessCredential, accountID string, offset int) (TitlesPage, error) {
	query := url.Values{
		"limit":  {strconv.Itoa(a.pageSize)},
		"offset": {strconv.Itoa(offset)},
	}
	p, err := a.client.get(ctx, cred, "trophyTitles",
		fmt.Sprintf("/v1/users/%s/trophyTitles", url.PathEscape(accountID)), query)
	if err != nil {
		return TitlesPage{}, err
	}

	entries := p.list("trophyTitles", "titles")
	page := TitlesPage{Titles: make([]TitleSummary, 0, len(entries))}
	for _, entry := range entries {
		title, err := normalizeTitle(entry)
		if err != nil {
			page.Dropped++
			metrics.SchemaDriftTotal.WithLabelValues("title").Inc()
			logging.Warn().Err(err).Msg("Dropping title entry with unrecognized shape")
			continue
		}
		page.Titles = append(page.Titles, title)
	}

	next := p.integer(-1, "nextOffset")
	if next < 0 || len(entries) == 0 {
		page.Done = true
	} else {
		page.NextOffset = next
	}
	return page, nil
}

// ListTrophyDefinitions fetches all trophy definitions for a title.
func (a *Adapter) ListTrophyDefinitions(ctx context.Context, cred AccessCredential, title TitleSummary) ([]TrophyRecord, int, error) {
	p, err := a.client.get(ctx, cred, "titleTrophies",
		fmt.Sprintf("/v1/npCommunicationIds/%s/trophyGroups/all/trophies", url.PathEscape(title.ExternalID)),
		serviceQuery(title.Platform))
	if err != nil {
		return nil, 0, err
	}

	entries := p.list("trophies")
	records := make([]TrophyRecord, 0, len(entries))
	dropped := 0
	for _, entry := range entries {
		rec, err := normalizeTrophy(entry)
		if err != nil {
			dropped++
			metrics.SchemaDriftTotal.WithLabelValues("trophy").Inc()
			continue
		}
		records = append(records, rec)
	}
	if dropped > 0 {
		logging.Warn().
			Str("title", title.ExternalID).
			Int("dropped", dropped).
			Msg("Dropped trophy definitions with unrecognized shape")
	}
	return records, dropped, nil
}

// ListEarnedTrophies fetches the user's earned state for a title.
func (a *Adapter) ListEarnedTrophies(ctx context.Context, cred AccessCredential, accountID string, title TitleSummary) ([]EarnedRecord, int, error) {
	p, err := a.client.get(ctx, cred, "earnedTrophies",
		fmt.Sprintf("/v1/users/%s/npCommunicationIds/%s/trophyGroups/all/trophies",
			url.PathEscape(accountID), url.PathEscape(title.ExternalID)),
		serviceQuery(title.Platform))
	if err != nil {
		return nil, 0, err
	}

	entries := p.list("trophies")
	records := make([]EarnedRecord, 0, len(entries))
	dropped := 0
	for _, entry := range entries {
		rec, err := normalizeEarned(entry)
		if err != nil {
			dropped++
			metrics.SchemaDriftTotal.WithLabelValues("earned").Inc()
			continue
		}
		records = append(records, rec)
	}
	if dropped > 0 {
		logging.Warn().
			Str("title", title.ExternalID).
			Int("dropped", dropped).
			Msg("Dropped earned entries with unrecognized shape")
	}
	return records, dropped, nil
}

// serviceQuery adds the legacy service name required for pre-PS5
// trophy sets.
func serviceQuery(platform string) url.Values {
	if strings.Contains(platform, "PS5") {
		return nil
	}
	return url.Values{"npServiceName": {"trophy"}}
}
