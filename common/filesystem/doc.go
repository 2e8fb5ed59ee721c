// Package filesystem provides the execution environment a simulation mutates. A Provider wraps
// either a real mounted volume or an in-memory file system and exposes it as an afero.Fs rooted
// at the mount, together with the capacity and flush barrier the simulation needs between
// operations.
//
// Example selecting a real or in-memory file system:
//
//	var mount filesystem.Provider
//	if cfg.FileSystem.Type == filesystem.MemoryFSIdentifier {
//	    mount = filesystem.NewMockFS(cfg.FileSystem.Capacity)
//	} else {
//	    mount, err = filesystem.NewFromMountPoint(cfg.FileSystem.MountPoint)
//	}
package filesystem
