package monitor

// User-facing text. The quiz application is Japanese-only.
const (
	titleWarning  = "セッション期限切れ警告"
	titleCritical = "緊急: セッション期限切れ直前"
	titleExpired  = "セッションが期限切れになりました"
	titleRestore  = "セッション復元"

	msgWarningFmt  = "セッションがあと%d分で期限切れになります。継続しますか？"
	msgCriticalFmt = "セッションがあと%d秒で期限切れになります！"
	msgExpired     = "安全のためセッションが期限切れになりました。復元可能なバックアップがある場合は復元できます。"
	msgRestorePick = "復元するバックアップを選択してください："
	msgStatusFmt   = "セッション残り時間: %d分"

	labelExtend    = "セッションを延長"
	labelSave      = "現在の進行状況を保存"
	labelExtendNow = "今すぐ延長"
	labelRestore   = "セッションを復元"
	labelFresh     = "新しいセッションを開始"
	labelCancel    = "キャンセル"
	labelManual    = "(手動保存)"
	labelAuto      = "(自動保存)"

	noticeExtended      = "セッションを延長しました"
	noticeExtendFailed  = "セッション延長に失敗しました"
	noticeSaved         = "現在の進行状況を保存しました"
	noticeSaveFailed    = "セッション保存に失敗しました"
	noticeLedgerFailed  = "バックアップ記録の保存に失敗しました"
	noticeRestored      = "セッションを復元しました"
	noticeRestoreFailed = "セッション復元に失敗しました"
	noticeNoBackups     = "復元可能なバックアップが見つかりません"
	noticeStartFailed   = "新しいセッションの開始に失敗しました"

	backupTimeLayout = "2006/01/02 15:04:05"
)
