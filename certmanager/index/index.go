// Package index keeps a SQL ledger of issued and revoked certificates.
//
// The file store stays the source of truth; revoked certificates are deleted from it, so the index
// is the only place where their history can be queried.
package index

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/whitekid/goxp/fx"
	"github.com/whitekid/goxp/log"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"fsca/certmanager/types"
	"fsca/pkg/helper/gormx"
)

// Interface certificate index
type Interface interface {
	// Init create schema
	Init(ctx context.Context) error

	// Record add issued certificate
	Record(ctx context.Context, cert *types.Certificate, dnsNames []string) error

	// MarkRevoked mark certificate of serial as revoked
	MarkRevoked(ctx context.Context, rev *types.Revocation) error

	List(ctx context.Context, opts ListOpt) ([]*Record, error)
}

// Record indexed certificate
type Record struct {
	Name      string           `json:"name" yaml:"name"`
	Type      types.EntityType `json:"type" yaml:"type"`
	CN        string           `json:"cn" yaml:"cn"`
	Serial    int64            `json:"serial" yaml:"serial"`
	Status    types.Status     `json:"status" yaml:"status"`
	DNSNames  []string         `json:"dns_names,omitempty" yaml:"dns_names,omitempty"`
	NotBefore time.Time        `json:"not_before" yaml:"not_before"`
	NotAfter  time.Time        `json:"not_after" yaml:"not_after"`
	RevokedAt *time.Time       `json:"revoked_at,omitempty" yaml:"revoked_at,omitempty"`
}

type ListOpt struct {
	Name   string
	Status types.Status
}

// Certificate index model
type Certificate struct {
	gorm.Model

	Serial    int64         `gorm:"uniqueIndex" validate:"required,gt=0"`
	Name      string        `gorm:"index;size:64" validate:"required"`
	Type      string        `gorm:"size:10" validate:"required,oneof=root server client"`
	CN        string        `gorm:"size:256" validate:"required"`
	Status    string        `gorm:"size:10" validate:"required,oneof=active revoked"`
	DNSNames  gormx.Strings `gorm:"column:dns_names"`
	NotBefore time.Time
	NotAfter  time.Time
	RevokedAt *time.Time
}

// NewSQL open index database; dburl see gormx.Open()
func NewSQL(dburl string) (Interface, error) {
	db, err := gormx.Open(dburl, &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: "fsca_",
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "fail to open index")
	}

	return &sqlIndexImpl{db: db}, nil
}

type sqlIndexImpl struct {
	db *gorm.DB
}

var _ Interface = (*sqlIndexImpl)(nil)

func (s *sqlIndexImpl) Init(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Certificate{}); err != nil {
		return errors.Wrap(err, "fail to migrate index")
	}
	return nil
}

func (s *sqlIndexImpl) Record(ctx context.Context, cert *types.Certificate, dnsNames []string) error {
	log.Debugf("Record(): name=%s, serial=%d", cert.Name, cert.Serial)

	m := &Certificate{
		Serial:    cert.Serial,
		Name:      cert.Name,
		Type:      cert.Type.String(),
		CN:        cert.CN,
		Status:    types.StatusActive.String(),
		DNSNames:  dnsNames,
		NotBefore: cert.NotBefore.UTC(),
		NotAfter:  cert.NotAfter.UTC(),
	}

	if err := gormx.ConvertSQLError(s.db.WithContext(ctx).Create(m).Error); err != nil {
		if errors.Is(err, gormx.ErrUniqueConstraintFailed) {
			return types.Classify(types.ErrAlreadyExists, err, "fail to record certificate")
		}
		return errors.Wrap(err, "fail to record certificate")
	}

	return nil
}

func (s *sqlIndexImpl) MarkRevoked(ctx context.Context, rev *types.Revocation) error {
	log.Debugf("MarkRevoked(): name=%s, serial=%d", rev.Name, rev.Serial)

	m := &Certificate{}
	if err := s.db.WithContext(ctx).Where("serial = ?", rev.Serial).First(m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Classify(types.ErrNotFound, err, "fail to mark revoked")
		}
		return errors.Wrap(err, "fail to mark revoked")
	}

	revokedAt := rev.RevokedAt.UTC()
	m.Status = types.StatusRevoked.String()
	m.RevokedAt = &revokedAt

	if err := gormx.ConvertSQLError(s.db.WithContext(ctx).Save(m).Error); err != nil {
		return errors.Wrap(err, "fail to mark revoked")
	}

	return nil
}

func (s *sqlIndexImpl) List(ctx context.Context, opts ListOpt) ([]*Record, error) {
	tx := s.db.WithContext(ctx).Model(&Certificate{}).Order("serial")
	if opts.Name != "" {
		tx = tx.Where("name = ?", opts.Name)
	}
	if opts.Status != types.StatusNone {
		tx = tx.Where("status = ?", opts.Status.String())
	}

	var results []*Certificate
	if err := tx.Find(&results).Error; err != nil {
		return nil, errors.Wrap(err, "fail to list index")
	}

	return fx.Map(results, func(m *Certificate) *Record {
		typ, _ := types.ParseEntityType(m.Type)
		return &Record{
			Name:      m.Name,
			Type:      typ,
			CN:        m.CN,
			Serial:    m.Serial,
			Status:    types.StrToStatus(m.Status),
			DNSNames:  m.DNSNames,
			NotBefore: m.NotBefore,
			NotAfter:  m.NotAfter,
			RevokedAt: m.RevokedAt,
		}
	}), nil
}

// Null returns index that records nothing; List returns ErrIndexDisabled
func Null() Interface { return nullIndex{} }

type nullIndex struct{}

func (nullIndex) Init(context.Context) error                                  { return nil }
func (nullIndex) Record(context.Context, *types.Certificate, []string) error { return nil }
func (nullIndex) MarkRevoked(context.Context, *types.Revocation) error        { return nil }
func (nullIndex) List(context.Context, ListOpt) ([]*Record, error) {
	return nil, types.ErrIndexDisabled
}
