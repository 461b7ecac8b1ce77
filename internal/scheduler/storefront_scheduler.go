package scheduler

import (
	"context"
	"time"

	"github.com/ikkim/storefront/pkg/logger"
	"github.com/robfig/cron/v3"
)

// CatalogRefresher 상품 캐시 갱신
type CatalogRefresher interface {
	RefreshCatalog(ctx context.Context) error
}

// SessionSweeper 유휴 방문자 세션 정리
type SessionSweeper interface {
	Sweep(idle time.Duration) int
}

// CredentialPurger 만료된 저장 토큰 삭제 (database 드라이버 전용)
type CredentialPurger interface {
	Purge(ctx context.Context) (int64, error)
}

// Config 스케줄 표현식
type Config struct {
	CatalogRefreshSpec string
	SessionSweepSpec   string
	IdleTTL            time.Duration
	JobTimeout         time.Duration
}

// StorefrontScheduler 게이트웨이 주기 작업 스케줄러
type StorefrontScheduler struct {
	cron     *cron.Cron
	cfg      Config
	catalog  CatalogRefresher
	sessions SessionSweeper
	purger   CredentialPurger
}

// NewStorefrontScheduler 스케줄러 생성. purger 는 nil 일 수 있다.
func NewStorefrontScheduler(cfg Config, catalog CatalogRefresher, sessions SessionSweeper, purger CredentialPurger) *StorefrontScheduler {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	return &StorefrontScheduler{
		cron:     cron.New(),
		cfg:      cfg,
		catalog:  catalog,
		sessions: sessions,
		purger:   purger,
	}
}

// Start 스케줄러 시작
func (s *StorefrontScheduler) Start() error {
	if s.catalog != nil && s.cfg.CatalogRefreshSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.CatalogRefreshSpec, s.refreshCatalog); err != nil {
			logger.Error("Failed to add cron job for catalog refresh", err, logger.Fields{
				"spec": s.cfg.CatalogRefreshSpec,
			})
			return err
		}
	}

	if s.cfg.SessionSweepSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.SessionSweepSpec, s.sweep); err != nil {
			logger.Error("Failed to add cron job for session sweep", err, logger.Fields{
				"spec": s.cfg.SessionSweepSpec,
			})
			return err
		}
	}

	s.cron.Start()
	logger.Info("Storefront scheduler started successfully", logger.Fields{
		"catalog_refresh": s.cfg.CatalogRefreshSpec,
		"session_sweep":   s.cfg.SessionSweepSpec,
		"jobs":            len(s.cron.Entries()),
	})

	return nil
}

// Stop 스케줄러 중지. 실행 중인 작업이 끝날 때까지 기다린다.
func (s *StorefrontScheduler) Stop() {
	logger.Info("Stopping storefront scheduler...")
	<-s.cron.Stop().Done()
	logger.Info("Storefront scheduler stopped")
}

func (s *StorefrontScheduler) refreshCatalog() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	logger.Debug("Starting scheduled catalog refresh")
	if err := s.catalog.RefreshCatalog(ctx); err != nil {
		logger.Error("Failed to refresh catalog from scheduler", err)
		return
	}
	logger.Info("Successfully refreshed catalog from scheduler")
}

// sweep 유휴 세션과 만료 토큰을 함께 정리한다.
func (s *StorefrontScheduler) sweep() {
	removed := 0
	if s.sessions != nil {
		removed = s.sessions.Sweep(s.cfg.IdleTTL)
	}

	var purged int64
	if s.purger != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
		defer cancel()

		n, err := s.purger.Purge(ctx)
		if err != nil {
			logger.Error("Failed to purge expired credentials", err)
		}
		purged = n
	}

	if removed > 0 || purged > 0 {
		logger.Info("Session sweep finished", logger.Fields{
			"sessions_removed":    removed,
			"credentials_purged": purged,
		})
	}
}
