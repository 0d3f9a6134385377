package commands

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lalmajed/citysh/internal/checkpoint"
	"github.com/lalmajed/citysh/internal/districts"
	"github.com/lalmajed/citysh/internal/parcel"
	"github.com/lalmajed/citysh/internal/report"
	"github.com/lalmajed/citysh/internal/umaps"
	"github.com/lalmajed/citysh/lib/configutil"
	"github.com/lalmajed/citysh/lib/serviceutil"
	"github.com/lalmajed/citysh/lib/sqliteutil"
)

type PortalConfig struct {
	BaseUrl        string `json:"base_url"`
	ProxyPath      string `json:"proxy_path"`
	MapServer      string `json:"map_server"`
	Layer          int    `json:"layer"`
	UserAgent      string `json:"user_agent"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type HarvestConfig struct {
	CityID             string              `json:"city_id"`
	Where              string              `json:"where"`
	OutFields          []string            `json:"out_fields"`
	OrderBy            string              `json:"order_by"`
	PageSize           int64               `json:"page_size"`
	MinIntervalSeconds int                 `json:"min_interval_seconds"`
	Burst              int                 `json:"burst"`
	RetryBaseSeconds   int                 `json:"retry_base_seconds"`
	RetryMaxSeconds    int                 `json:"retry_max_seconds"`
	RetryAttempts      int                 `json:"retry_attempts"`
	Bounds             *parcel.BoundingBox `json:"bounds"`
}

type ExportConfig struct {
	City   string `json:"city"`
	Output string `json:"output"`
}

// JournalConfig points the run journal at a local sqlite file or a
// remote libsql database. Url wins when both are set.
type JournalConfig struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

type Config struct {
	Portal    PortalConfig         `json:"portal"`
	Harvest   HarvestConfig        `json:"harvest"`
	Export    ExportConfig         `json:"export"`
	Journal   JournalConfig        `json:"journal"`
	Smtp      report.SmtpConfig    `json:"smtp"`
	Rules     *parcel.Rules        `json:"rules"`
	Districts []districts.District `json:"districts"`
}

// loadConfig reads the config file named by --config. A missing file is
// fine, the defaults target the Riyadh parcel layer.
func loadConfig() Config {
	cfg, err := configutil.ReadConfig[Config](*configName)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("no config file found, using defaults", "name", *configName)
	} else if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Portal.BaseUrl == "" {
		c.Portal.BaseUrl = "https://umaps.balady.gov.sa"
	}
	if c.Portal.ProxyPath == "" {
		c.Portal.ProxyPath = "/newProxyUDP/proxy.ashx"
	}
	if c.Portal.MapServer == "" {
		// "Satatistics" is the portal's own typo, do not fix it.
		c.Portal.MapServer = "https://umapsudp.momrah.gov.sa/server/rest/services/Umaps/Umaps_Identify_Satatistics/MapServer"
		if c.Portal.Layer == 0 {
			c.Portal.Layer = 28
		}
	}
	if c.Harvest.CityID == "" {
		c.Harvest.CityID = "00100001"
	}
	if c.Harvest.Where == "" {
		c.Harvest.Where = fmt.Sprintf("CITY_ID='%s'", c.Harvest.CityID)
	}
	if c.Harvest.PageSize <= 0 {
		c.Harvest.PageSize = 2000
	}
	if c.Harvest.MinIntervalSeconds <= 0 {
		c.Harvest.MinIntervalSeconds = 2
	}
	if c.Harvest.RetryBaseSeconds <= 0 {
		c.Harvest.RetryBaseSeconds = 5
	}
	if c.Harvest.RetryMaxSeconds <= 0 {
		c.Harvest.RetryMaxSeconds = 300
	}
	if c.Harvest.RetryAttempts <= 0 {
		c.Harvest.RetryAttempts = 5
	}
	if c.Export.City == "" {
		c.Export.City = "Riyadh"
	}
	if c.Export.Output == "" {
		c.Export.Output = "riyadh_parcels"
	}
	if c.Journal.File == "" && c.Journal.Url == "" {
		c.Journal.File = "harvest_runs.db"
	}
}

func (c Config) rules() parcel.Rules {
	if c.Rules != nil {
		return *c.Rules
	}
	return parcel.DefaultRules()
}

// bounds picks the sanity-check box for coordinates. Explicit config
// wins, the Riyadh box applies for the default city, any other city
// runs unchecked.
func (c Config) bounds() parcel.BoundingBox {
	if c.Harvest.Bounds != nil {
		return *c.Harvest.Bounds
	}
	if c.Harvest.CityID == "00100001" {
		return parcel.RiyadhBoundingBox()
	}
	return parcel.BoundingBox{}
}

// source keys journal entries so resume offsets never cross layers.
func (c Config) source() string {
	return fmt.Sprintf("%s/%d", c.Portal.MapServer, c.Portal.Layer)
}

func newPortalClient(c Config) *umaps.Client {
	client, err := umaps.NewClient(umaps.ClientOptions{
		BaseUrl:   c.Portal.BaseUrl,
		ProxyPath: c.Portal.ProxyPath,
		MapServer: c.Portal.MapServer,
		Layer:     c.Portal.Layer,
		UserAgent: c.Portal.UserAgent,
		Timeout:   time.Duration(c.Portal.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize portal client", err)
	}
	return client
}

func openJournal(c Config) (*checkpoint.Store, func()) {
	var db *sql.DB
	var err error
	if c.Journal.Url != "" {
		db, err = sqliteutil.OpenRemote(checkpoint.Schema, c.Journal.Url, c.Journal.AuthToken)
	} else {
		db, err = sqliteutil.OpenDB(checkpoint.Schema, c.Journal.File)
	}
	if err != nil {
		serviceutil.Fatal("failed to open run journal", err)
	}
	store := checkpoint.NewStore(db)
	return &store, func() { db.Close() }
}
