package svc

import (
	"log"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	appcache "chartfeed/internal/cache"
	"chartfeed/internal/config"
	"chartfeed/internal/model"
	"chartfeed/pkg/ohlcv"
	_ "chartfeed/pkg/ohlcv/sources/binance"
	_ "chartfeed/pkg/ohlcv/sources/geckoterminal"
	_ "chartfeed/pkg/ohlcv/sources/moralis"
	_ "chartfeed/pkg/ohlcv/sources/subgraph"
)

type ServiceContext struct {
	Config config.Config

	TTL appcache.TTLSet

	Sources map[string]ohlcv.Source
	OHLCV   *ohlcv.Service

	// Optional DB collaborators; nil when Postgres is not configured.
	DBConn           sqlx.SqlConn
	TokensModel      model.TokensModel
	QuoteAssetsModel model.QuoteAssetsModel
	TokenStore       ohlcv.TokenStore
}

func NewServiceContext(c *config.Config) *ServiceContext {
	svc := &ServiceContext{
		Config: *c,
		TTL:    appcache.NewTTLSet(c.TTL),
	}

	if dsn := strings.TrimSpace(c.Postgres.DSN); dsn != "" {
		conn := sqlx.NewSqlConn("pgx", dsn)
		svc.DBConn = conn
		// Cached models need a Redis backing; without one the token store
		// is skipped and the service falls back to the built-in quote table.
		if cacheConf := modelCacheConf(c); cacheConf != nil {
			svc.TokensModel = model.NewTokensModel(conn, cacheConf)
			svc.QuoteAssetsModel = model.NewQuoteAssetsModel(conn, cacheConf)
			svc.TokenStore = newDBTokenStore(svc.TokensModel, svc.QuoteAssetsModel, svc.TTL)
		}
	}

	if c.OHLCV.Value != nil {
		sources, err := c.OHLCV.Value.BuildSources()
		if err != nil {
			log.Fatalf("failed to build candle sources: %v", err)
		}
		opts := []ohlcv.ServiceOption{}
		if svc.TokenStore != nil {
			opts = append(opts, ohlcv.WithTokenStore(svc.TokenStore))
		}
		service, err := ohlcv.NewService(c.OHLCV.Value, sources, opts...)
		if err != nil {
			log.Fatalf("failed to assemble candle service: %v", err)
		}
		svc.Sources = sources
		svc.OHLCV = service
	}

	return svc
}

func modelCacheConf(c *config.Config) cache.CacheConf {
	if strings.TrimSpace(c.Redis.Host) == "" {
		return nil
	}
	return cache.CacheConf{{
		RedisConf: c.Redis,
		Weight:    100,
	}}
}
