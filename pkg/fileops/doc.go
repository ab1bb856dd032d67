// Package fileops provides the path helpers shared by the workspace engine.
//
// Every path that reaches the filesystem on behalf of a user setting goes
// through the same sequence:
//
//  1. ExpandPath resolves "~" and "~/..." against the user's home directory.
//  2. ValidatePathSecurity rejects empty input, ".." traversal, and reserved
//     system locations.
//  3. Operations that mutate the tree (EnsureDirectoryExists, RemoveTree)
//     re-check the path before touching the disk.
//
// # Example
//
//	root := fileops.ExpandPath("~/work")
//	if err := fileops.ValidatePathSecurity(root); err != nil {
//	    return fmt.Errorf("workspace root: %w", err)
//	}
//	if err := fileops.RemoveTree(filepath.Join(root, "widgets")); err != nil {
//	    return err
//	}
//
// RemoveTree refuses the filesystem root, the home directory itself, and
// anything IsReservedDirectory flags.
package fileops
