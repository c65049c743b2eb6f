// Package process provides the OS process surfaces used by the engine: a
// snapshot provider backed by gopsutil and a terminate-capable handle
// implementation per platform.
//
// Handle semantics differ by platform. On Linux the handle is a pidfd, so a
// kill issued through it can never reach an unrelated process that reused the
// pid. On other unix systems the handle only remembers the pid and the kill is
// a plain SIGKILL, which leaves a small reuse window between Open and Kill. On
// Windows the handle is a real process handle opened with PROCESS_TERMINATE
// and the exit code passed to Kill is reported to the process's waiters;
// unix platforms ignore the exit code.
package process
