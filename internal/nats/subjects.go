package nats

// NATS Subject 常量定义
const (
	// SubjectPrefix 完整格式: doors.{world}.authority / doors.{world}.everyone
	SubjectPrefix = "doors."

	SubjectAuthoritySuffix = ".authority"
	SubjectEveryoneSuffix  = ".everyone"

	// QueueGroupAuthority 权威订阅的队列组，交接期间也只有一个进程收到
	QueueGroupAuthority = "doors-authority"
)

// BuildAuthoritySubject 构建权威命令 Subject
func BuildAuthoritySubject(world string) string {
	return SubjectPrefix + world + SubjectAuthoritySuffix
}

// BuildEveryoneSubject 构建广播 Subject
func BuildEveryoneSubject(world string) string {
	return SubjectPrefix + world + SubjectEveryoneSuffix
}
