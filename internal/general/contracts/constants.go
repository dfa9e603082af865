package contracts

// Exchanges
const (
	ExchangeRequestTopic      = "request_topic"
	ExchangeNotificationTopic = "notification_topic"
)

// Queues
const (
	QueueRequestStatus = "request_status"
	QueueNotifications = "notifications"
)

// Routing patterns
const (
	RouteRequestStatusPrefix = "request.status." // {status}
	RouteNotificationPrefix  = "notification."   // {kind}
)

// Producers
const (
	ProducerChat         = "chat-service"
	ProducerNotification = "notification-service"
)
