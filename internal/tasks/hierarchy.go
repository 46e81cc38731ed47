package tasks

// BuildTree links a line-ordered task list into a forest. Each task becomes
// a child of the nearest preceding task with a smaller depth; a depth jump
// with no ancestor at depth-1 attaches to whatever ancestor is still open.
func BuildTree(flat []*Task) []*Task {
	roots := make([]*Task, 0)
	stack := make([]*Task, 0)
	for _, task := range flat {
		for len(stack) > 0 && stack[len(stack)-1].Depth >= task.Depth {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, task)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, task)
		}
		stack = append(stack, task)
	}
	return roots
}

// Walk visits every task under roots in preorder using an explicit stack.
// Returning false from visit stops the walk.
func Walk(roots []*Task, visit func(*Task) bool) {
	stack := make([]*Task, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) > 0 {
		task := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(task) {
			return
		}
		for i := len(task.Children) - 1; i >= 0; i-- {
			stack = append(stack, task.Children[i])
		}
	}
}

// Flatten returns every task under roots in preorder, which for a single
// parse is line order.
func Flatten(roots []*Task) []*Task {
	all := make([]*Task, 0, len(roots))
	Walk(roots, func(t *Task) bool {
		all = append(all, t)
		return true
	})
	return all
}
