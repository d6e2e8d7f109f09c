package domain

const (
	RoleMember = "MEMBER"
	RoleAdmin  = "ADMIN"
)

// Placement legs.
const (
	LegLeft  = "left"
	LegRight = "right"
	LegAuto  = "auto"
)

const (
	CommissionTypeDirect     = "direct"
	CommissionTypeBinary     = "binary"
	CommissionTypeMultilevel = "multilevel"
	CommissionTypeRankBonus  = "rank_bonus"
)

const (
	CommissionStatusPending   = "pending"
	CommissionStatusApproved  = "approved"
	CommissionStatusPaid      = "paid"
	CommissionStatusCancelled = "cancelled"
)

// Wallet transaction types.
const (
	WalletTxCommission         = "COMMISSION"
	WalletTxCommissionReversal = "COMMISSION_REVERSAL"
	WalletTxWithdrawal         = "WITHDRAWAL"
	WalletTxWithdrawalCancel   = "WITHDRAWAL_CANCEL"
)

const (
	WalletTxStatusPending   = "pending"
	WalletTxStatusCompleted = "completed"
	WalletTxStatusCancelled = "cancelled"
)

const (
	WithdrawalStatusPending    = "pending"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusCompleted  = "completed"
	WithdrawalStatusRejected   = "rejected"
)

const (
	BinaryRunPaid     = "paid"
	BinaryRunNoPayout = "no_payout"
	BinaryRunCapped   = "capped"
)

// Period lengths for scheduled sweeps.
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

// System setting keys that override the configured plan.
const (
	SettingDirectPercent        = "plan.direct_percent"
	SettingBinaryPercent        = "plan.binary.percent"
	SettingBinaryMinPV          = "plan.binary.min_pv"
	SettingBinaryCapCents       = "plan.binary.cap_cents"
	SettingBinaryMaxCarryCycles = "plan.binary.max_carry_cycles"
	SettingWithdrawalMinCents   = "plan.withdrawal.min_cents"
	SettingWithdrawalFeePercent = "plan.withdrawal.fee_percent"
	SettingWithdrawalFeeFloor   = "plan.withdrawal.fee_floor_cents"
)
