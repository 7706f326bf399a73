// Package apps installs third-party app bundles into the shared UI tree.
//
// A bundle is a zip archive fetched from <repo>/<appId>/app.zip holding an
// optional metadata.json, scripts under app/ and assets under extras/.
// Installed apps are tracked by the registry files in ui/third_party_apps.
package apps
