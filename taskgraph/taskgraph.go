// Package taskgraph turns a partition into the generated-tasks document the
// orchestrator consumes: one task definition per sub-suite, a catch-all misc
// task, a display task grouping them under the parent name, and the
// generator reference enumerating them all.
package taskgraph

import (
	"github.com/taskgen/taskgen/model"
	"github.com/taskgen/taskgen/split"
)

// Builder assembles generated configs from partitions.
type Builder struct {
	// CreateMiscTask adds a "<task>_misc" sub-task excluding every
	// assigned test, so tests added to the suite after generation still
	// get executed.
	CreateMiscTask bool
}

// Build produces the generated config for one suite's partition. The output
// depends only on its inputs: identical suite metadata and bins yield a
// structurally identical document, which downstream change detection relies
// on.
func (b *Builder) Build(s model.Suite, bins []split.Bin) model.GeneratedConfig {
	parent := model.RemoveGenSuffix(s.Name)
	tasks := make([]model.TaskDef, 0, len(bins)+1)
	names := make([]string, 0, len(bins)+1)

	for i, bin := range bins {
		name := model.NameGeneratedTask(parent, i, len(bins), s.Variant)
		files := make([]string, len(bin.Tests))
		for j, t := range bin.Tests {
			files[j] = t.Path
		}
		tasks = append(tasks, model.TaskDef{
			Name:      name,
			Suite:     parent,
			TestFiles: files,
			Runtime:   bin.Runtime,
			Tags:      copyStrings(s.Tags),
			DependsOn: copyStrings(s.DependsOn),
			Variant:   s.Variant,
			Distro:    s.Distro,
		})
		names = append(names, name)
	}

	if b.CreateMiscTask && len(bins) > 0 {
		name := model.NameMiscTask(parent, s.Variant)
		tasks = append(tasks, model.TaskDef{
			Name:      name,
			Suite:     parent,
			Tags:      copyStrings(s.Tags),
			DependsOn: copyStrings(s.DependsOn),
			Variant:   s.Variant,
			Distro:    s.Distro,
		})
		names = append(names, name)
	}

	cfg := model.GeneratedConfig{
		Generator: model.GeneratorTask{
			Name:  parent + model.GenSuffix,
			Tasks: names,
		},
		Tasks: tasks,
	}
	if len(names) > 0 {
		cfg.DisplayTasks = []model.DisplayTask{{
			Name:           parent,
			ExecutionTasks: copyStrings(names),
		}}
	}
	return cfg
}

func copyStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return append([]string(nil), s...)
}
