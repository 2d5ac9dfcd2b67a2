package sideload

import (
	"context"
	"sync"
)

type MissingSideloadPolicy string

const (
	// MissingSideloadRaise aborts resolution when a requested relation is not
	// registered. This is the default.
	MissingSideloadRaise MissingSideloadPolicy = "raise"
	// MissingSideloadIgnore silently skips unknown requested relations.
	MissingSideloadIgnore MissingSideloadPolicy = "ignore"
)

// ResolverOptions configures a Resolver. The zero value raises on missing
// sideloads and resolves siblings strictly in declaration order.
type ResolverOptions struct {
	MissingSideloads MissingSideloadPolicy

	// ConcurrentSiblings resolves sibling relations at the same nesting level
	// concurrently. Safe as long as two distinct relations never target the
	// same attribute name on the shared parent records. All sibling fetches
	// complete before any assign runs, and nothing is assigned at a level when
	// any sibling fetch fails.
	ConcurrentSiblings bool
}

// Resolver walks a RelationTree against a parent batch and a requested include
// directive, fetching each requested relation exactly once and assigning the
// children onto their parents. The tree must be fully configured before any
// Resolve call.
type Resolver struct {
	opts ResolverOptions
}

func NewResolver(opts ...ResolverOptions) *Resolver {
	resolver := &Resolver{}
	if len(opts) > 0 {
		resolver.opts = opts[0]
	}
	if resolver.opts.MissingSideloads == "" {
		resolver.opts.MissingSideloads = MissingSideloadRaise
	}
	return resolver
}

// Resolve resolves every relation named in requested against parents,
// recursing into each related type's own tree for nested requests. Parents are
// mutated in place; on error nothing useful can be assumed about partially
// assigned relations and the batch should be discarded.
func (r *Resolver) Resolve(ctx context.Context, tree *RelationTree, parents []Record, requested NestedInclude) error {
	return r.resolveLevel(ctx, tree, parents, requested, "")
}

// sideloadJob is one pending relation resolution at a level: a node, the
// parent cohort it fetches against and the nested directive to recurse with.
type sideloadJob struct {
	node      *RelationNode
	parents   []Record
	nested    NestedInclude
	namespace string
	children  []Record
}

func (r *Resolver) resolveLevel(ctx context.Context, tree *RelationTree, parents []Record, requested NestedInclude, namespace string) error {
	if len(requested) == 0 {
		return nil
	}

	if r.opts.MissingSideloads == MissingSideloadRaise {
		for name := range requested {
			if _, ok := tree.Relation(name); !ok {
				return &MissingSideloadError{Relation: name, Tree: tree.Name()}
			}
		}
	}

	jobs, err := r.collectJobs(tree, parents, requested, namespace)
	if err != nil {
		return err
	}

	if r.opts.ConcurrentSiblings && len(jobs) > 1 {
		if err := r.fetchConcurrently(ctx, jobs); err != nil {
			return err
		}
		for _, job := range jobs {
			if err := r.assignAndRecurse(ctx, job); err != nil {
				return err
			}
		}
		return nil
	}

	for _, job := range jobs {
		if err := r.fetchJob(ctx, job); err != nil {
			return err
		}
		if err := r.assignAndRecurse(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

// collectJobs expands the requested relations at a level into concrete jobs in
// declaration order. Polymorphic groups become one job per partition whose
// discriminator value has a registered branch; partitions without a branch are
// skipped, those parents keep the relation unassigned.
func (r *Resolver) collectJobs(tree *RelationTree, parents []Record, requested NestedInclude, namespace string) ([]*sideloadJob, error) {
	var jobs []*sideloadJob

	for _, name := range tree.RelationNames() {
		nested, ok := requested[name]
		if !ok {
			continue
		}

		rel, _ := tree.Relation(name)

		switch rel := rel.(type) {
		case *PolymorphicGroup:
			if err := rel.validate(); err != nil {
				return nil, err
			}
			for _, part := range rel.partition(parents) {
				branch, ok := rel.Group(part.key)
				if !ok {
					continue
				}
				jobs = append(jobs, &sideloadJob{
					node:      branch,
					parents:   part.records,
					nested:    nested,
					namespace: rel.Name(),
				})
			}
		case *RelationNode:
			if err := rel.validate(); err != nil {
				return nil, err
			}
			ns := namespace
			if ns == "" {
				ns = rel.Name()
			}
			jobs = append(jobs, &sideloadJob{
				node:      rel,
				parents:   parents,
				nested:    nested,
				namespace: ns,
			})
		}
	}

	return jobs, nil
}

// fetchJob builds and resolves the scope for one job. The fetch callback runs
// even when the parent cohort is empty. Sideloaded fetches never inherit the
// outer query's pagination.
func (r *Resolver) fetchJob(ctx context.Context, job *sideloadJob) error {
	scope, err := job.node.fetch(job.parents)
	if err != nil {
		return &FetchError{Relation: job.node.Name(), Namespace: job.namespace, Err: err}
	}

	children, err := scope.Resolve(ctx, ResolveOptions{DefaultPaginate: false, Namespace: job.namespace})
	if err != nil {
		return &FetchError{Relation: job.node.Name(), Namespace: job.namespace, Err: err}
	}

	job.children = children
	return nil
}

func (r *Resolver) fetchConcurrently(ctx context.Context, jobs []*sideloadJob) error {
	var wg sync.WaitGroup
	errs := make([]error, len(jobs))

	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job *sideloadJob) {
			defer wg.Done()
			errs[i] = r.fetchJob(ctx, job)
		}(i, job)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) assignAndRecurse(ctx context.Context, job *sideloadJob) error {
	if err := job.node.assign(job.parents, job.children); err != nil {
		return err
	}

	if len(job.nested) == 0 {
		return nil
	}

	target := job.node.TargetTree()
	if target == nil {
		if r.opts.MissingSideloads == MissingSideloadIgnore {
			return nil
		}
		for name := range job.nested {
			return &MissingSideloadError{Relation: name, Tree: job.node.Name()}
		}
	}

	return r.resolveLevel(ctx, target, job.children, job.nested, job.node.Name())
}
