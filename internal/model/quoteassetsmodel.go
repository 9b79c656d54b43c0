package model

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/stores/builder"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlc"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/stringx"
)

var (
	quoteAssetsFieldNames        = builder.RawFieldNames(&QuoteAssets{}, true)
	quoteAssetsRows              = strings.Join(quoteAssetsFieldNames, ",")
	quoteAssetsRowsExpectAutoSet = strings.Join(stringx.Remove(quoteAssetsFieldNames, "id"), ",")

	cacheQuoteAssetsChainAddressPrefix = "cache:chartfeed:quoteAssets:chainAddress:"
)

type (
	// QuoteAssetsModel is the data access layer for the quote_assets table,
	// the per-chain list of stablecoins and wrapped natives worth quoting
	// against.
	QuoteAssetsModel interface {
		Insert(ctx context.Context, data *QuoteAssets) (sql.Result, error)
		FindOneByChainAddress(ctx context.Context, chainId int64, address string) (*QuoteAssets, error)
		ListByChain(ctx context.Context, chainId int64) ([]*QuoteAssets, error)
		Delete(ctx context.Context, chainId int64, address string) error
	}

	defaultQuoteAssetsModel struct {
		sqlc.CachedConn
		table string
	}

	QuoteAssets struct {
		Id       int64  `db:"id"`
		ChainId  int64  `db:"chain_id"`
		Address  string `db:"address"`
		Symbol   string `db:"symbol"`
		Priority int64  `db:"priority"`
	}
)

func NewQuoteAssetsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) QuoteAssetsModel {
	return &defaultQuoteAssetsModel{
		CachedConn: sqlc.NewConn(conn, c, opts...),
		table:      `"quote_assets"`,
	}
}

func (m *defaultQuoteAssetsModel) Insert(ctx context.Context, data *QuoteAssets) (sql.Result, error) {
	chainAddressKey := fmt.Sprintf("%s%v:%v", cacheQuoteAssetsChainAddressPrefix, data.ChainId, strings.ToLower(data.Address))
	return m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("insert into %s (%s) values ($1, $2, $3, $4)", m.table, quoteAssetsRowsExpectAutoSet)
		return conn.ExecCtx(ctx, query, data.ChainId, data.Address, data.Symbol, data.Priority)
	}, chainAddressKey)
}

func (m *defaultQuoteAssetsModel) FindOneByChainAddress(ctx context.Context, chainId int64, address string) (*QuoteAssets, error) {
	chainAddressKey := fmt.Sprintf("%s%v:%v", cacheQuoteAssetsChainAddressPrefix, chainId, strings.ToLower(address))
	var resp QuoteAssets
	err := m.QueryRowCtx(ctx, &resp, chainAddressKey, func(ctx context.Context, conn sqlx.SqlConn, v interface{}) error {
		query := fmt.Sprintf("select %s from %s where chain_id = $1 and lower(address) = lower($2) limit 1", quoteAssetsRows, m.table)
		return conn.QueryRowCtx(ctx, v, query, chainId, address)
	})
	switch err {
	case nil:
		return &resp, nil
	case sqlc.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

// ListByChain is not cached: the list is small and callers layer their own
// in-process cache on top.
func (m *defaultQuoteAssetsModel) ListByChain(ctx context.Context, chainId int64) ([]*QuoteAssets, error) {
	var resp []*QuoteAssets
	query := fmt.Sprintf("select %s from %s where chain_id = $1 order by priority asc", quoteAssetsRows, m.table)
	err := m.QueryRowsNoCacheCtx(ctx, &resp, query, chainId)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *defaultQuoteAssetsModel) Delete(ctx context.Context, chainId int64, address string) error {
	chainAddressKey := fmt.Sprintf("%s%v:%v", cacheQuoteAssetsChainAddressPrefix, chainId, strings.ToLower(address))
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("delete from %s where chain_id = $1 and lower(address) = lower($2)", m.table)
		return conn.ExecCtx(ctx, query, chainId, address)
	}, chainAddressKey)
	return err
}
