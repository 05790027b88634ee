package querystats

import (
	"time"

	"gorm.io/gorm"

	"github.com/drblury/apienvelope/scope"
)

const (
	gormPluginName = "apienvelope:querystats"
	gormStartKey   = "apienvelope:querystats:start"
)

// GormPlugin records every statement executed through a *gorm.DB on the
// request scope found in the statement context.
//
//	db.Use(querystats.NewGormPlugin())
//	db.WithContext(r.Context()).First(&user, id)
type GormPlugin struct {
	now func() time.Time
}

var _ gorm.Plugin = (*GormPlugin)(nil)

// NewGormPlugin returns a plugin timed with time.Now.
func NewGormPlugin() *GormPlugin {
	return &GormPlugin{now: time.Now}
}

// Name implements gorm.Plugin.
func (p *GormPlugin) Name() string {
	return gormPluginName
}

// Initialize registers before and after callbacks on every processor.
func (p *GormPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register(gormPluginName+":before_create", p.Before); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register(gormPluginName+":after_create", p.After); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register(gormPluginName+":before_query", p.Before); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register(gormPluginName+":after_query", p.After); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register(gormPluginName+":before_update", p.Before); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register(gormPluginName+":after_update", p.After); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register(gormPluginName+":before_delete", p.Before); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register(gormPluginName+":after_delete", p.After); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register(gormPluginName+":before_row", p.Before); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register(gormPluginName+":after_row", p.After); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register(gormPluginName+":before_raw", p.Before); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Register(gormPluginName+":after_raw", p.After)
}

// Before stamps the statement with its start time.
func (p *GormPlugin) Before(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	db.InstanceSet(gormStartKey, p.now())
}

// After records the statement on the request scope, if there is one.
func (p *GormPlugin) After(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	s, ok := scope.FromContext(db.Statement.Context)
	if !ok {
		return
	}
	var elapsed time.Duration
	if v, ok := db.InstanceGet(gormStartKey); ok {
		if started, ok := v.(time.Time); ok {
			elapsed = p.now().Sub(started)
		}
	}
	s.RecordQuery(db.Statement.SQL.String(), elapsed)
}
