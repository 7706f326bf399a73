// Package platform installs and updates platform components from their
// source repositories.
//
// Ownership boundary:
// - git clone/pull of each component at a version branch
// - package-manager dependency install per component
// - keeping component directories inside the installation root
package platform
