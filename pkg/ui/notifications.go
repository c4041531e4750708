package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"mediafetch/pkg/events"
)

const appName = "mediafetch"

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	cmd := exec.Command("notify-send", "--app-name="+appName, title, message)
	return cmd.Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeQuotes(message), escapeQuotes(title))
	cmd := exec.Command("osascript", "-e", script)
	return cmd.Run()
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`)
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("%s").Show($toast)
	`, title, message, appName)

	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	return cmd.Run()
}

// Notifier handles cross-platform notifications
type Notifier struct {
	sender NotificationSender
}

// NewNotifier creates a new Notifier based on the current platform
func NewNotifier() *Notifier {
	var sender NotificationSender

	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	case "windows":
		sender = &WindowsNotificationSender{}
	}

	return &Notifier{sender: sender}
}

// NewNotifierWithSender creates a Notifier that delivers through sender
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

// Send delivers a desktop notification if the platform supports it.
// Delivery errors are returned but callers usually ignore them.
func (n *Notifier) Send(title, message string) error {
	if n.sender == nil {
		return nil
	}
	return n.sender.Send(title, message)
}

// NotifyReporter raises a desktop notification when a job finishes
type NotifyReporter struct {
	notifier   *Notifier
	onComplete bool
	onError    bool
}

// NewNotifyReporter creates a reporter that notifies on clean completion,
// on completion with failures, or both
func NewNotifyReporter(n *Notifier, onComplete, onError bool) *NotifyReporter {
	return &NotifyReporter{notifier: n, onComplete: onComplete, onError: onError}
}

func (r *NotifyReporter) Emit(e events.Event) {
	if e.Kind != events.KindJobCompleted || e.Total == 0 {
		return
	}
	switch {
	case e.Failed > 0 && r.onError:
		_ = r.notifier.Send(appName+": fetch finished with errors",
			fmt.Sprintf("%s: %d fetched, %d failed", e.CollectionKey, e.Succeeded, e.Failed))
	case e.Failed == 0 && r.onComplete:
		_ = r.notifier.Send(appName+": fetch complete",
			fmt.Sprintf("%s: %d files fetched", e.CollectionKey, e.Succeeded))
	}
}
