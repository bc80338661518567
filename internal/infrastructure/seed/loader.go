package seed

import (
	"context"
	"fmt"

	"github.com/curricula/backend/internal/domain/standards"
	"github.com/curricula/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Result reports what Apply did
type Result struct {
	Created    []string
	Skipped    []string
	Objectives int
}

// Loader writes seed files into the database
type Loader struct {
	db     *persistence.Database
	logger *zap.Logger
}

// NewLoader creates a seed Loader
func NewLoader(db *persistence.Database, logger *zap.Logger) *Loader {
	return &Loader{db: db, logger: logger.Named("seed")}
}

// Apply creates every framework of f for the tenant in a single transaction.
// Frameworks that already exist in the same educational area under the same
// name are skipped, so a file can be applied repeatedly.
func (l *Loader) Apply(ctx context.Context, tenantID uuid.UUID, f *File) (Result, error) {
	var res Result
	if tenantID == uuid.Nil {
		return res, fmt.Errorf("%w: tenant id is required", ErrInvalidSeed)
	}
	if err := f.Validate(); err != nil {
		return res, err
	}

	err := l.db.Transaction(ctx, func(tx *gorm.DB) error {
		frameworks := persistence.NewGormFrameworkRepository(tx)
		objectives := persistence.NewGormObjectiveRepository(tx)

		existing, err := frameworks.FindAllForTenant(ctx, tenantID, standards.FrameworkFilter{})
		if err != nil {
			return fmt.Errorf("list frameworks: %w", err)
		}
		known := make(map[string]struct{}, len(existing))
		for _, fw := range existing {
			known[frameworkKey(fw.EducationalArea, fw.Name)] = struct{}{}
		}

		for _, spec := range f.Frameworks {
			if _, ok := known[frameworkKey(spec.EducationalArea, spec.Name)]; ok {
				res.Skipped = append(res.Skipped, spec.Name)
				continue
			}

			fw, objs, err := buildFramework(tenantID, spec)
			if err != nil {
				return err
			}
			if err := frameworks.Save(ctx, fw); err != nil {
				return fmt.Errorf("save framework %q: %w", spec.Name, err)
			}
			if len(objs) > 0 {
				if err := objectives.SaveBatch(ctx, objs); err != nil {
					return fmt.Errorf("save objectives of %q: %w", spec.Name, err)
				}
			}

			res.Created = append(res.Created, spec.Name)
			res.Objectives += len(objs)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	l.logger.Info("seed applied",
		zap.String("tenant_id", tenantID.String()),
		zap.Strings("created", res.Created),
		zap.Strings("skipped", res.Skipped),
		zap.Int("objectives", res.Objectives),
	)
	return res, nil
}

// buildFramework turns a spec into domain objects and checks that the
// objectives form a valid tree before anything is written.
func buildFramework(tenantID uuid.UUID, spec FrameworkSpec) (*standards.Framework, []*standards.Objective, error) {
	fw, err := standards.NewFramework(tenantID, spec.EducationalArea, spec.Name, spec.Official)
	if err != nil {
		return nil, nil, fmt.Errorf("framework %q: %w", spec.Name, err)
	}
	fw.SetDescription(spec.Description)

	objs := make([]*standards.Objective, 0, spec.ObjectiveCount())
	var walk func(specs []ObjectiveSpec, parent *uuid.UUID) error
	walk = func(specs []ObjectiveSpec, parent *uuid.UUID) error {
		for _, s := range specs {
			o, err := standards.NewObjective(tenantID, fw.ID, s.Code, s.Title, parent)
			if err != nil {
				return fmt.Errorf("framework %q objective %s: %w", spec.Name, s.Code, err)
			}
			o.Description = s.Description
			objs = append(objs, o)

			id := o.ID
			if err := walk(s.Children, &id); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(spec.Objectives, nil); err != nil {
		return nil, nil, err
	}

	if _, err := standards.BuildObjectiveTree(fw.ID, objs); err != nil {
		return nil, nil, fmt.Errorf("framework %q: %w", spec.Name, err)
	}
	return fw, objs, nil
}
