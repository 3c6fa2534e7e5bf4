// Package component implements the SimuCore component tree.
//
// A Tree is an arena of nodes addressed by Handle. Every node has a name, a
// Kind, an optional Behavior and a stable 32-bit identity derived from its
// full path (ancestor names joined with "->"). Nodes are attached to their
// parent at creation and never move; destroying a node destroys its subtree.
//
// Lifecycle walks are depth-first pre-order, self before children:
//
//	tree := component.NewTree(logger)
//	root, _ := tree.NewRoot("plant", plantBehavior)
//	pump, _ := tree.Attach(root, "pump", component.KindComponent, pumpBehavior)
//
//	if err := tree.InitAll(ctx); err != nil { ... } // exactly once
//	for {
//		tree.ExecuteAll(ctx) // every tick
//	}
//
// A Behavior that returns an error or panics does not stop the walk: the
// fault is logged, counted and remembered on the node, and the walk moves on
// to that node's children and siblings.
//
// Tree methods are safe for concurrent use. Behaviors run without the tree
// lock held, so they may call back into the tree.
package component
