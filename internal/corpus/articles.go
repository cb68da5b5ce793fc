package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/yomu-hq/yomu-reader/internal/dateutil"
	"github.com/yomu-hq/yomu-reader/internal/domain"
	"github.com/yomu-hq/yomu-reader/internal/storage"
)

// LoadArticles returns the persisted article corpus.
func (s *ArticleStore) LoadArticles() ([]domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadArticlesLocked()
}

func (s *ArticleStore) loadArticlesLocked() ([]domain.Article, error) {
	articles, err := loadList[domain.Article](s.store, articlesKey)
	if err != nil {
		return nil, fmt.Errorf("load articles: %w", err)
	}
	return articles, nil
}

// SaveArticles persists the article corpus. A quota-exceeded rejection
// is recovered locally: the write is retried with the first half of the
// list, and if that retry fails too the persisted corpus is cleared
// rather than left partially written. Any other persistence error is
// returned for the caller to report; the in-memory state stays
// authoritative for the session.
func (s *ArticleStore) SaveArticles(articles []domain.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveArticlesLocked(articles)
}

func (s *ArticleStore) saveArticlesLocked(articles []domain.Article) error {
	data, err := json.Marshal(articles)
	if err != nil {
		return fmt.Errorf("encode articles: %w", err)
	}

	err = s.store.Put(articlesKey, data)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrQuotaExceeded) {
		return fmt.Errorf("save articles: %w", err)
	}

	reduced := articles[:len(articles)/2]
	s.log.WarnObj("storage quota exceeded, retrying with reduced corpus", "quota_meta", map[string]any{
		"articles": len(articles),
		"retained": len(reduced),
	})

	reducedData, err := json.Marshal(reduced)
	if err == nil {
		if err = s.store.Put(articlesKey, reducedData); err == nil {
			return nil
		}
	}

	s.log.ErrorObj("reduced save failed, clearing persisted articles", "quota_meta", map[string]any{
		"error": err.Error(),
	})
	if delErr := s.store.Delete(articlesKey); delErr != nil {
		return fmt.Errorf("clear articles after quota exhaustion: %w", delErr)
	}
	return nil
}

// AddArticles merges newly fetched articles into the corpus and applies
// the retention policy:
//
//  1. articles whose ID is already present are dropped
//  2. the merged corpus is sorted newest first
//  3. articles are bucketed by their civil date in the reference
//     timezone against today: future, today, past
//  4. today and past are each capped, keeping the most recent entries
//  5. past articles older than the retention window are dropped; future
//     and today are exempt from the age cut
//
// The operation is idempotent with respect to identity: re-adding the
// same articles never changes corpus membership.
func (s *ArticleStore) AddArticles(newArticles []domain.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.loadArticlesLocked()
	if err != nil {
		return err
	}

	existingIDs := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		existingIDs[a.ID] = struct{}{}
	}

	all := append([]domain.Article(nil), existing...)
	for _, a := range newArticles {
		if _, ok := existingIDs[a.ID]; ok {
			continue
		}
		existingIDs[a.ID] = struct{}{}
		all = append(all, a)
	}

	sortByPublishedDesc(all)

	today := dateutil.CivilDate(s.now(), s.zone)
	var futureArticles, todayArticles, pastArticles []domain.Article
	for _, a := range all {
		switch key := dateutil.CivilDate(a.PublishedAt, s.zone); {
		case key > today:
			futureArticles = append(futureArticles, a)
		case key == today:
			todayArticles = append(todayArticles, a)
		default:
			pastArticles = append(pastArticles, a)
		}
	}

	if len(todayArticles) > s.todayCap {
		s.log.InfoObj("today bucket over cap, evicting oldest", "retention_meta", map[string]any{
			"bucket": "today",
			"count":  len(todayArticles),
			"cap":    s.todayCap,
		})
		todayArticles = todayArticles[:s.todayCap]
	}
	if len(pastArticles) > s.pastCap {
		s.log.InfoObj("past bucket over cap, evicting oldest", "retention_meta", map[string]any{
			"bucket": "past",
			"count":  len(pastArticles),
			"cap":    s.pastCap,
		})
		pastArticles = pastArticles[:s.pastCap]
	}

	// Wall-clock age cut, applied to the past bucket only.
	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	aged := pastArticles[:0]
	for _, a := range pastArticles {
		if !a.PublishedAt.Before(cutoff) {
			aged = append(aged, a)
		}
	}
	pastArticles = aged

	final := make([]domain.Article, 0, len(futureArticles)+len(todayArticles)+len(pastArticles))
	final = append(final, futureArticles...)
	final = append(final, todayArticles...)
	final = append(final, pastArticles...)
	sortByPublishedDesc(final)

	return s.saveArticlesLocked(final)
}

func sortByPublishedDesc(articles []domain.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
}

// SetClock overrides the time source. Test hook.
func (s *ArticleStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
