// Package confloader loads and watches configuration files.
//
// Loader layers sources with koanf; later sources override earlier ones:
//
//  1. Defaults already present in the target struct
//  2. YAML configuration file
//  3. INKWELD_* environment variables
//  4. Explicit maps (command-line flags)
//
// Watcher uses fsnotify to report settled changes of one configuration
// file, coalescing the burst of events an editor save produces.
package confloader
