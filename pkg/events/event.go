// oreon/sentinel · watchthelight <wtl>

package events

// ScanBuilder is a typed builder for scan events.
type ScanBuilder struct {
	*Builder
}

// StartScan creates a new scan event builder.
func StartScan(target, requestID string) *ScanBuilder {
	b := Start(EventTypeScan, "bridge")
	b.Set(FieldTarget, target)
	b.Set(FieldRequestID, requestID)
	return &ScanBuilder{Builder: b}
}

// Level sets the resulting threat level.
func (b *ScanBuilder) Level(level string) *ScanBuilder {
	b.Set(FieldLevel, level)
	return b
}

// Score sets the resulting risk score.
func (b *ScanBuilder) Score(score int) *ScanBuilder {
	b.Set(FieldScore, score)
	return b
}

// IPCRequestBuilder is a typed builder for IPC request events.
type IPCRequestBuilder struct {
	*Builder
}

// StartIPCRequest creates a new IPC request event builder.
func StartIPCRequest(command, requestID string) *IPCRequestBuilder {
	b := Start(EventTypeIPCRequest, "ipc")
	b.Set(FieldCommand, command)
	b.Set(FieldRequestID, requestID)
	return &IPCRequestBuilder{Builder: b}
}

// ClientVersion sets the client protocol version.
func (b *IPCRequestBuilder) ClientVersion(version int) *IPCRequestBuilder {
	b.Set(FieldClientVersion, version)
	return b
}

// ResponseSize sets the response size in bytes.
func (b *IPCRequestBuilder) ResponseSize(bytes int) *IPCRequestBuilder {
	b.Set(FieldResponseSize, bytes)
	return b
}

// BridgeBuilder is a typed builder for native channel events.
type BridgeBuilder struct {
	*Builder
}

// StartBridge creates a new bridge event builder.
func StartBridge(host string) *BridgeBuilder {
	b := Start(EventTypeBridge, "bridge")
	b.Set(FieldHost, host)
	return &BridgeBuilder{Builder: b}
}

// Reason records why the channel changed state.
func (b *BridgeBuilder) Reason(reason string) *BridgeBuilder {
	b.Set(FieldReason, reason)
	return b
}

// ThreatBuilder is a typed builder for threat detection events.
type ThreatBuilder struct {
	*Builder
}

// StartThreat creates a new threat detection event builder.
func StartThreat(target, level string) *ThreatBuilder {
	b := Start(EventTypeThreat, "interceptor")
	b.Set(FieldTarget, target)
	b.Set(FieldLevel, level)
	return &ThreatBuilder{Builder: b}
}

// Score sets the risk score assigned to the threat.
func (b *ThreatBuilder) Score(score int) *ThreatBuilder {
	b.Set(FieldScore, score)
	return b
}

// Action sets the action taken on the threat.
func (b *ThreatBuilder) Action(action string) *ThreatBuilder {
	b.Set(FieldAction, action)
	return b
}

// DownloadID records the platform download identifier.
func (b *ThreatBuilder) DownloadID(id int32) *ThreatBuilder {
	b.Set(FieldDownloadID, id)
	return b
}

// NavigationBuilder is a typed builder for navigation intercept events.
type NavigationBuilder struct {
	*Builder
}

// StartNavigation creates a new navigation event builder.
func StartNavigation(url string, tabID int) *NavigationBuilder {
	b := Start(EventTypeNavigation, "interceptor")
	b.Set(FieldURL, url)
	b.Set(FieldTabID, tabID)
	return &NavigationBuilder{Builder: b}
}

// Score sets the accumulated heuristic score.
func (b *NavigationBuilder) Score(score int) *NavigationBuilder {
	b.Set(FieldScore, score)
	return b
}

// DownloadBuilder is a typed builder for download intercept events.
type DownloadBuilder struct {
	*Builder
}

// StartDownload creates a new download event builder.
func StartDownload(filename string, downloadID int32) *DownloadBuilder {
	b := Start(EventTypeDownload, "interceptor")
	b.Set(FieldFilename, filename)
	b.Set(FieldDownloadID, downloadID)
	return &DownloadBuilder{Builder: b}
}

// Action sets the action taken on the download.
func (b *DownloadBuilder) Action(action string) *DownloadBuilder {
	b.Set(FieldAction, action)
	return b
}

// DecisionBuilder is a typed builder for warning view decisions.
type DecisionBuilder struct {
	*Builder
}

// StartDecision creates a new decision event builder.
func StartDecision(target, action string) *DecisionBuilder {
	b := Start(EventTypeDecision, "surface")
	b.Set(FieldTarget, target)
	b.Set(FieldAction, action)
	return &DecisionBuilder{Builder: b}
}

// ExportBuilder is a typed builder for report export events.
type ExportBuilder struct {
	*Builder
}

// StartExport creates a new export event builder.
func StartExport(format string) *ExportBuilder {
	b := Start(EventTypeExport, "report")
	b.Set(FieldFormat, format)
	return &ExportBuilder{Builder: b}
}

// Entries sets the number of history entries exported.
func (b *ExportBuilder) Entries(count int) *ExportBuilder {
	b.Set(FieldEntries, count)
	return b
}
