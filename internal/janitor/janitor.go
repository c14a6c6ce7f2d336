// Package janitor runs the scheduled consistency sweep. Project creation
// compensates a failed participation batch by deleting the fresh project in
// the background; when that compensation itself fails the project survives
// with zero participants. The sweep finds such projects and, when deletion is
// enabled, removes them along with any tasks they accumulated.
package janitor

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/taskboard-app/taskboard-backend/internal/model"
	"github.com/taskboard-app/taskboard-backend/internal/store"
)

// minAge keeps the sweep from racing a creation that is still between the
// project write and the participation batch.
const minAge = time.Hour

type Janitor struct {
	store    store.Store
	schedule string
	delete   bool
	cron     *cron.Cron
}

func New(st store.Store, schedule string, delete bool) *Janitor {
	return &Janitor{store: st, schedule: schedule, delete: delete}
}

// Start registers the sweep with the scheduler. An empty schedule disables
// the janitor.
func (j *Janitor) Start() {
	if j.schedule == "" {
		return
	}

	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(j.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := j.Sweep(ctx); err != nil {
			log.Printf("janitor: sweep failed: %v", err)
		}
	})
	if err != nil {
		log.Printf("janitor: invalid schedule %q: %v", j.schedule, err)
		return
	}

	log.Printf("janitor: scheduled orphan sweep (%s, delete=%v)", j.schedule, j.delete)
	c.Start()
	j.cron = c
}

func (j *Janitor) Stop() {
	if j.cron != nil {
		j.cron.Stop()
	}
}

// Sweep scans for projects old enough to have settled that have no
// participations. In report-only mode it just logs them.
func (j *Janitor) Sweep(ctx context.Context) error {
	started := time.Now()
	cutoff := started.Add(-minAge)

	docs, _, err := j.store.GetDocuments(ctx, model.CollectionProjects, &store.Query{})
	if err != nil {
		return err
	}

	orphans := 0
	for _, doc := range docs {
		project, err := store.Decode[model.Project](&doc)
		if err != nil {
			log.Printf("janitor: skipping undecodable project %s: %v", doc.ID, err)
			continue
		}
		if project.CreatedAt.After(cutoff) {
			continue
		}
		n, err := j.store.Count(ctx, model.CollectionParticipations, []store.Filter{
			{Field: model.FieldProjectID, Op: store.OpEqual, Value: doc.ID},
		})
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}

		orphans++
		log.Printf("janitor: project %s (%q) has no participants", doc.ID, project.Title)
		if !j.delete {
			continue
		}
		if err := j.remove(ctx, doc.ID); err != nil {
			return err
		}
	}

	log.Printf("janitor: sweep done in %s, %d orphans (delete=%v)",
		time.Since(started).Round(time.Millisecond), orphans, j.delete)
	return nil
}

func (j *Janitor) remove(ctx context.Context, projectID string) error {
	tasks, _, err := j.store.GetDocuments(ctx, model.CollectionTasks, &store.Query{
		Filters: []store.Filter{{Field: model.FieldProjectID, Op: store.OpEqual, Value: projectID}},
	})
	if err != nil {
		return err
	}
	ops := make([]store.BatchOp, 0, len(tasks)+1)
	for _, task := range tasks {
		ops = append(ops, store.BatchOp{Kind: store.BatchDelete, Collection: model.CollectionTasks, ID: task.ID})
	}
	ops = append(ops, store.BatchOp{Kind: store.BatchDelete, Collection: model.CollectionProjects, ID: projectID})
	return j.store.ApplyBatch(ctx, ops)
}
