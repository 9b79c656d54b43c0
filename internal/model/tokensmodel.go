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
	tokensFieldNames          = builder.RawFieldNames(&Tokens{}, true)
	tokensRows                = strings.Join(tokensFieldNames, ",")
	tokensRowsExpectAutoSet   = strings.Join(stringx.Remove(tokensFieldNames, "id"), ",")
	tokensRowsWithPlaceHolder = builder.PostgreSqlJoin(stringx.Remove(tokensFieldNames, "id"))

	cacheTokensIdPrefix           = "cache:chartfeed:tokens:id:"
	cacheTokensChainAddressPrefix = "cache:chartfeed:tokens:chainAddress:"
)

type (
	// TokensModel is the data access layer for the tokens table.
	TokensModel interface {
		Insert(ctx context.Context, data *Tokens) (sql.Result, error)
		FindOne(ctx context.Context, id int64) (*Tokens, error)
		FindOneByChainAddress(ctx context.Context, chainId int64, address string) (*Tokens, error)
		Update(ctx context.Context, data *Tokens) error
		Delete(ctx context.Context, id int64) error
	}

	defaultTokensModel struct {
		sqlc.CachedConn
		table string
	}

	Tokens struct {
		Id       int64          `db:"id"`
		ChainId  int64          `db:"chain_id"`
		Address  string         `db:"address"`
		Symbol   string         `db:"symbol"`
		Name     sql.NullString `db:"name"`
		Decimals int64          `db:"decimals"`
		LogoUrl  sql.NullString `db:"logo_url"`
	}
)

func NewTokensModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) TokensModel {
	return &defaultTokensModel{
		CachedConn: sqlc.NewConn(conn, c, opts...),
		table:      `"tokens"`,
	}
}

func (m *defaultTokensModel) Insert(ctx context.Context, data *Tokens) (sql.Result, error) {
	chainAddressKey := fmt.Sprintf("%s%v:%v", cacheTokensChainAddressPrefix, data.ChainId, strings.ToLower(data.Address))
	return m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("insert into %s (%s) values ($1, $2, $3, $4, $5, $6)", m.table, tokensRowsExpectAutoSet)
		return conn.ExecCtx(ctx, query, data.ChainId, data.Address, data.Symbol, data.Name, data.Decimals, data.LogoUrl)
	}, chainAddressKey)
}

func (m *defaultTokensModel) FindOne(ctx context.Context, id int64) (*Tokens, error) {
	idKey := fmt.Sprintf("%s%v", cacheTokensIdPrefix, id)
	var resp Tokens
	err := m.QueryRowCtx(ctx, &resp, idKey, func(ctx context.Context, conn sqlx.SqlConn, v interface{}) error {
		query := fmt.Sprintf("select %s from %s where id = $1 limit 1", tokensRows, m.table)
		return conn.QueryRowCtx(ctx, v, query, id)
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

func (m *defaultTokensModel) FindOneByChainAddress(ctx context.Context, chainId int64, address string) (*Tokens, error) {
	chainAddressKey := fmt.Sprintf("%s%v:%v", cacheTokensChainAddressPrefix, chainId, strings.ToLower(address))
	var resp Tokens
	err := m.QueryRowCtx(ctx, &resp, chainAddressKey, func(ctx context.Context, conn sqlx.SqlConn, v interface{}) error {
		query := fmt.Sprintf("select %s from %s where chain_id = $1 and lower(address) = lower($2) limit 1", tokensRows, m.table)
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

func (m *defaultTokensModel) Update(ctx context.Context, data *Tokens) error {
	idKey := fmt.Sprintf("%s%v", cacheTokensIdPrefix, data.Id)
	chainAddressKey := fmt.Sprintf("%s%v:%v", cacheTokensChainAddressPrefix, data.ChainId, strings.ToLower(data.Address))
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("update %s set %s where id = $1", m.table, tokensRowsWithPlaceHolder)
		return conn.ExecCtx(ctx, query, data.Id, data.ChainId, data.Address, data.Symbol, data.Name, data.Decimals, data.LogoUrl)
	}, idKey, chainAddressKey)
	return err
}

func (m *defaultTokensModel) Delete(ctx context.Context, id int64) error {
	data, err := m.FindOne(ctx, id)
	if err != nil {
		return err
	}

	idKey := fmt.Sprintf("%s%v", cacheTokensIdPrefix, id)
	chainAddressKey := fmt.Sprintf("%s%v:%v", cacheTokensChainAddressPrefix, data.ChainId, strings.ToLower(data.Address))
	_, err = m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("delete from %s where id = $1", m.table)
		return conn.ExecCtx(ctx, query, id)
	}, idKey, chainAddressKey)
	return err
}
