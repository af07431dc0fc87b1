package db

import "github.com/printhausapp/printhaus/internal/models"

type Order = models.Order
type OrderItem = models.OrderItem
type OrderStatus = models.OrderStatus
type ShippingAddress = models.ShippingAddress
type DownloadGrant = models.DownloadGrant
type DownloadRedemption = models.DownloadRedemption
type Product = models.Product

const (
	StatusPending   = models.StatusPending
	StatusPaid      = models.StatusPaid
	StatusShipped   = models.StatusShipped
	StatusDelivered = models.StatusDelivered
	StatusCancelled = models.StatusCancelled
)
