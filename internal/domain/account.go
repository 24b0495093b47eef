package domain

import "strings"

// AccountState — состояние локального аккаунта на стороне motley_cue.
// Закрытый набор значений: всё, что не входит в него, ведет в UnexpectedStateError.
type AccountState string

const (
	StateNotDeployed AccountState = "not_deployed" // аккаунт создается при первом деплое
	StatePending     AccountState = "pending"      // ожидает ручного одобрения администратора
	StateDeployed    AccountState = "deployed"     // аккаунт существует, деплой обновляет его
	StateLimited     AccountState = "limited"      // урезанные права, но вход возможен
	StateSuspended   AccountState = "suspended"    // заблокирован, вход скорее всего невозможен
	StateUnknown     AccountState = "unknown"      // сервис не смог определить состояние
)

// Known сообщает, входит ли состояние в известный набор.
func (s AccountState) Known() bool {
	switch s {
	case StateNotDeployed, StatePending, StateDeployed, StateLimited, StateSuspended, StateUnknown:
		return true
	}
	return false
}

// AccountStatus — ответ сервиса на /user/get_status.
type AccountStatus struct {
	State   AccountState `json:"state"`
	Message string       `json:"message"`
}

// Username извлекает локальное имя пользователя из message.
// Контракт motley_cue: имя — второе слово сообщения ("username <name> ...").
// Формат хрупкий, поэтому при несовпадении возвращается ok=false,
// а не пустая строка вслепую.
func (st AccountStatus) Username() (string, bool) {
	fields := strings.Fields(st.Message)
	if len(fields) < 2 {
		return "", false
	}
	return fields[1], true
}

// DeployedCredentials — блок credentials в ответе /user/deploy.
type DeployedCredentials struct {
	SSHUser  string   `json:"ssh_user"`
	SSHHost  string   `json:"ssh_host,omitempty"`
	Commands []string `json:"commands,omitempty"`
}

// DeployResult — ответ сервиса на /user/deploy.
type DeployResult struct {
	State       AccountState        `json:"state"`
	Credentials DeployedCredentials `json:"credentials"`
	Message     string              `json:"message"`
}

// Operand — один операнд scp-команды в исходном виде.
// Remote=true означает форму [user@]host:path.
type Operand struct {
	Original string // как передал пользователь
	Host     string
	User     string // пусто, если имя не задано явно
	Path     string
	Remote   bool
}

// Unsplit собирает операнд обратно, подставляя полученное имя пользователя.
func (o Operand) Unsplit(username string) string {
	if !o.Remote {
		return o.Original
	}
	return username + "@" + o.Host + ":" + o.Path
}
