// Package notification provides a unified interface for sending notices.
//
// It defines the Notifier interface and an SMTP email implementation built on
// wneessen/go-mail. Templates are registered per notice type and system on a
// NotificationManager; Send looks up the template and hands it to the
// registered notifier for rendering and delivery.
//
// MockNotifier records sends in memory and is the test double used across the
// repo wherever a service takes a Notifier.
package notification
