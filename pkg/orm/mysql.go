package orm

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Type        string // mysql | sqlite
	DSN         string // 连接字符串，mysql 需带 parseTime=true
	MaxIdle     int
	MaxOpen     int
	MaxLifetime time.Duration
	LogSQL      bool
}

// Open 建连接池并 Ping，失败直接返回错误，由 main 决定退出
func Open(ctx context.Context, c Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		// 写操作自己显式开事务
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
		Logger:                 logger.Default.LogMode(logger.Warn),
	}
	if c.LogSQL {
		gormCfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var (
		db  *gorm.DB
		err error
	)
	switch c.Type {
	case "", "mysql":
		var sqlDB *sql.DB
		sqlDB, err = sql.Open("mysql", c.DSN)
		if err != nil {
			return nil, err
		}
		// 复用同一个 *sql.DB 连接池
		db, err = gorm.Open(mysql.New(mysql.Config{Conn: sqlDB}), gormCfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(c.DSN), gormCfg)
	default:
		return nil, fmt.Errorf("orm: unsupported db type %q", c.Type)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if c.Type == "sqlite" {
		// sqlite 单写者，内存库多连接会各自一份数据
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(c.MaxIdle)
		sqlDB.SetMaxOpenConns(c.MaxOpen)
		sqlDB.SetConnMaxLifetime(c.MaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("orm: ping %s: %w", c.Type, err)
	}
	return db, nil
}

// Close 关闭底层连接池
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
