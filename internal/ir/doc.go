// Package ir provides the shared representation types for refjoin.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps ir the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - use Long (int64) for numbers
//   - Reference values carry the target node identifier, never a pointer
//   - All JSON tags use snake_case
//   - Creation-order stamps (seq) only, never wall-clock timestamps
package ir
