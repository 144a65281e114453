package mcpserver

import (
	"log/slog"

	"github.com/opsguard/shellgate/internal/gwerrors"
)

// logRejection logs a command that failed validation or execution at a
// level matching its severity: policy rejections are a security-relevant
// event (Warn), execution failures are operational noise (Info).
func logRejection(command string, err error) {
	if pe, ok := gwerrors.AsPolicyError(err); ok {
		slog.Warn("policy.command.rejected", "code", pe.Code, "command", command, "reason", pe.Message)
		return
	}
	if ee, ok := gwerrors.AsExecError(err); ok {
		slog.Info("exec.command.failed", "code", ee.Code, "command", command, "reason", ee.Message)
		return
	}
	slog.Warn("command.rejected", "command", command, "error", err.Error())
}
